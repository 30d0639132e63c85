package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/config"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/explain"
	"github.com/newthinker/prism/internal/llm/factory"
	"github.com/newthinker/prism/internal/logger"
	"github.com/newthinker/prism/internal/notifier"
	"github.com/newthinker/prism/internal/session"
)

var (
	analyzeMode     string
	analyzeFixtures string
	analyzeJSON     bool
	analyzeExplain  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Analyze a single symbol and print the assessment",
	Long: `Analyze runs fundamental, technical and sentiment scoring for one
symbol and prints the combined recommendation.

Example:
  prism analyze AAPL --mode comprehensive
  prism analyze MSFT --fixtures testdata/fixtures.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeMode, "mode", "m", "", "analysis mode: comprehensive, fundamental or technical")
	analyzeCmd.Flags().StringVar(&analyzeFixtures, "fixtures", "", "JSON fixture file to use as the first data provider")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the result as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeExplain, "explain", false, "append a plain-language explanation")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if analyzeFixtures != "" {
		cfg.Providers.Static.Fixtures = analyzeFixtures
		cfg.Providers.Order = append([]string{"static"}, without(cfg.Providers.Order, "static")...)
	}

	requested := analyzeMode
	if requested == "" {
		requested = cfg.Analysis.DefaultMode
	}
	mode, ok := core.ParseAnalysisType(requested)
	if !ok {
		return core.WrapError(core.ErrInvalidRequest, fmt.Errorf("unknown mode %q", requested))
	}

	analyzer, err := buildAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	symbol := strings.ToUpper(args[0])
	result, err := analyzer.Analyze(ctx, symbol, mode)
	if err != nil {
		return err
	}

	var explanation *explain.Explanation
	if analyzeExplain {
		explanation, err = explainResult(ctx, cfg.LLM, result, log)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Result      *core.AnalysisResult `json:"result"`
			Explanation *explain.Explanation `json:"explanation,omitempty"`
		}{result, explanation})
	}

	fmt.Fprint(out, notifier.Summary(*result))
	if explanation != nil {
		fmt.Fprintf(out, "\n%s\n", explanation.Text())
	}
	return nil
}

// explainResult runs a one-off session. Without an LLM the template
// explanation is returned.
func explainResult(ctx context.Context, lc config.LLMConfig, result *core.AnalysisResult, log *zap.Logger) (*explain.Explanation, error) {
	provider, err := factory.New(lc)
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}
	explainer := explain.New(provider, explain.Config{Timeout: lc.Timeout}, log.Named("explain"))
	sess := session.NewStore(1, 0).Create(result.Symbol, result)
	return explainer.Explain(ctx, sess, explain.DefaultQuestion)
}

func without(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
