package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/api"
	"github.com/newthinker/prism/internal/api/job"
	"github.com/newthinker/prism/internal/app"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/explain"
	"github.com/newthinker/prism/internal/llm/factory"
	"github.com/newthinker/prism/internal/logger"
	"github.com/newthinker/prism/internal/metrics"
	"github.com/newthinker/prism/internal/session"
	"github.com/newthinker/prism/internal/storage/assessment"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PRISM server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if cfg.Server.Mode == "debug" && !debug {
		log = logger.Must(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer, err := buildAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	a := app.New(analyzer, assessment.NewMemoryStore(cfg.Storage.Assessment.MaxSize), log.Named("app"))
	a.SetDefaultMode(core.AnalysisType(cfg.Analysis.DefaultMode))
	a.SetWatchlist(watchlistItems(cfg.Watchlist))
	if err := a.SetSchedule(cfg.Schedule.Cron); err != nil {
		return err
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		a.SetRecorder(reg)
	}

	archiver, err := buildArchiver(cfg, log)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	if archiver != nil {
		a.SetArchiver(archiver, time.Duration(cfg.Storage.Archive.RetentionDays)*24*time.Hour)
	}

	notifiers, err := buildNotifiers(cfg, log)
	if err != nil {
		return err
	}
	for _, n := range notifiers {
		if err := a.RegisterNotifier(n); err != nil {
			return err
		}
	}
	a.SetRouterConfig(routerConfig(cfg.Router))
	if e := buildAlerts(cfg.Alerts, notifiers, log); e != nil {
		a.SetAlerts(e)
	}

	sentimentCache, closeCache, err := buildCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer closeCache()

	provider, err := factory.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm provider: %w", err)
	}
	explainer := explain.New(provider, explain.Config{Timeout: cfg.LLM.Timeout}, log.Named("explain"))

	sessions := session.NewStore(cfg.Sessions.MaxSize, cfg.Sessions.TTL)
	jobs := job.NewStore(100, time.Hour)
	if err := a.AddJob("@every 1m", "session-sweep", func(context.Context) {
		sessions.Sweep()
		jobs.Sweep()
		if reg != nil {
			reg.SetSessionsActive(sessions.Len())
		}
	}); err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: cfg.Metrics.Path,
	}, api.Dependencies{
		App:            a,
		Jobs:           jobs,
		Sessions:       sessions,
		Explainer:      explainer,
		Archiver:       archiver,
		SentimentCache: sentimentCache,
		Metrics:        reg,
	}, log.Named("api"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	log.Info("starting PRISM server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("watchlist", len(cfg.Watchlist)),
		zap.Int("notifiers", len(notifiers)),
		zap.Bool("llm", explainer.HasLLM()),
		zap.Bool("archive", archiver != nil),
		zap.String("cache", cfg.Cache.Type),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start() }()
	go func() {
		if err := a.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
	}

	log.Info("shutting down PRISM server")
	a.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
