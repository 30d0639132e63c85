package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "PRISM - multi-signal equity scoring and sentiment aggregation",
	Long: `PRISM scores equities from fundamentals, technical indicators and
news/social sentiment, flags sentiment-vs-fundamentals conflicts, and
routes the resulting assessments to notifiers.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
