package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/alert"
	"github.com/newthinker/prism/internal/analysis"
	"github.com/newthinker/prism/internal/app"
	"github.com/newthinker/prism/internal/config"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/notifier"
	"github.com/newthinker/prism/internal/notifier/telegram"
	"github.com/newthinker/prism/internal/notifier/webhook"
	"github.com/newthinker/prism/internal/provider"
	feedcache "github.com/newthinker/prism/internal/provider/cache"
	"github.com/newthinker/prism/internal/provider/eastmoney"
	"github.com/newthinker/prism/internal/provider/reddit"
	"github.com/newthinker/prism/internal/provider/rss"
	"github.com/newthinker/prism/internal/provider/static"
	"github.com/newthinker/prism/internal/provider/yahoo"
	"github.com/newthinker/prism/internal/router"
	"github.com/newthinker/prism/internal/sentiment"
	"github.com/newthinker/prism/internal/storage/archive"
	"github.com/newthinker/prism/internal/storage/cache"
)

// loadConfig reads cfgFile, or falls back to defaults.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildAnalyzer wires data providers, feed sources and the sentiment
// aggregator into an analyzer.
func buildAnalyzer(cfg *config.Config, log *zap.Logger) (*analysis.Analyzer, error) {
	pc := cfg.Providers

	var fixtures *static.Provider
	if pc.Static.Fixtures != "" {
		fx, err := static.Load(pc.Static.Fixtures)
		if err != nil {
			return nil, err
		}
		fixtures = static.New(*fx)
	}

	order := pc.Order
	if len(order) == 0 {
		order = []string{"static", "eastmoney", "yahoo"}
	}
	registry := provider.NewRegistry(log)
	for _, name := range order {
		var p provider.DataProvider
		switch name {
		case "static":
			if fixtures != nil {
				p = fixtures
			}
		case "eastmoney":
			if pc.Eastmoney.Enabled {
				p = eastmoney.New(eastmoney.Config{
					QuoteURL:          pc.Eastmoney.QuoteURL,
					HistoryURL:        pc.Eastmoney.HistoryURL,
					RequestsPerSecond: pc.Eastmoney.RequestsPerSecond,
					Timeout:           pc.Eastmoney.Timeout,
					HistoryBars:       pc.Eastmoney.HistoryBars,
				}, log.Named("eastmoney"))
			}
		case "yahoo":
			if pc.Yahoo.Enabled {
				p = yahoo.New(yahoo.Config{
					ChartURL:          pc.Yahoo.ChartURL,
					SummaryURL:        pc.Yahoo.SummaryURL,
					RequestsPerSecond: pc.Yahoo.RequestsPerSecond,
					Burst:             pc.Yahoo.Burst,
					Timeout:           pc.Yahoo.Timeout,
					HistoryRange:      pc.Yahoo.HistoryRange,
				}, log.Named("yahoo"))
			}
		default:
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown provider %q", name))
		}
		if p == nil {
			continue
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	if len(registry.GetAll()) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no data provider enabled"))
	}

	feeds := buildFeeds(cfg, fixtures, log)

	var opts []sentiment.Option
	for symbol, names := range cfg.Sentiment.Aliases {
		opts = append(opts, sentiment.WithAliases(symbol, names...))
	}
	aggCfg := sentiment.AggregatorConfig{
		HalfLife:        cfg.Sentiment.HalfLife,
		NewsWeight:      cfg.Sentiment.NewsWeight,
		TrendThreshold:  cfg.Sentiment.TrendThreshold,
		TopKeywordLimit: cfg.Sentiment.TopKeywordLimit,
	}

	ac := cfg.Analysis
	a := analysis.NewAnalyzer(registry, feeds, analysis.AnalyzerConfig{
		Engine: analysis.Config{
			FundamentalWeight:      ac.FundamentalWeight,
			TechnicalWeight:        ac.TechnicalWeight,
			SentimentWeight:        ac.SentimentWeight,
			MinSentimentConfidence: ac.MinSentimentConfidence,
			ConflictThreshold:      ac.ConflictThreshold,
			Thresholds: analysis.Thresholds{
				StrongBuy: ac.Thresholds.StrongBuy,
				Buy:       ac.Thresholds.Buy,
				Hold:      ac.Thresholds.Hold,
				Sell:      ac.Thresholds.Sell,
			},
		},
		Aggregator:     aggCfg,
		FetchTimeout:   ac.FetchTimeout,
		DaysBack:       ac.DaysBack,
		Timeframe:      ac.Timeframe,
		MaxConcurrency: ac.MaxConcurrency,
	}, log.Named("analysis"))
	a.SetAggregator(sentiment.NewAggregator(sentiment.NewScorer(opts...), aggCfg))
	return a, nil
}

// buildFeeds combines RSS and Reddit sources behind a short-lived cache.
// With no live sources configured, fixture feeds are used when present.
func buildFeeds(cfg *config.Config, fixtures *static.Provider, log *zap.Logger) provider.FeedProvider {
	pc := cfg.Providers

	var news []provider.NewsSource
	for _, rc := range pc.RSS {
		news = append(news, rss.New(rss.Config{
			Name:        rc.Name,
			URLTemplate: rc.URLTemplate,
			Timeout:     rc.Timeout,
			MaxItems:    rc.MaxItems,
		}, log.Named("rss")))
	}
	var social []provider.SocialSource
	if pc.Reddit.Enabled {
		social = append(social, reddit.New(reddit.Config{
			BaseURL:           pc.Reddit.BaseURL,
			Subreddits:        pc.Reddit.Subreddits,
			UserAgent:         pc.Reddit.UserAgent,
			Limit:             pc.Reddit.Limit,
			RequestsPerSecond: pc.Reddit.RequestsPerSecond,
			Timeout:           pc.Reddit.Timeout,
		}, log.Named("reddit")))
	}

	if len(news) == 0 && len(social) == 0 {
		if fixtures != nil {
			return fixtures
		}
		return nil
	}

	var feeds provider.FeedProvider = provider.NewFeeds(news, social, log.Named("feeds"))
	if pc.FeedCacheTTL > 0 {
		feeds = feedcache.New(feeds, pc.FeedCacheTTL)
	}
	return feeds
}

// buildNotifiers creates the enabled notifiers in name order.
func buildNotifiers(cfg *config.Config, log *zap.Logger) ([]notifier.Notifier, error) {
	names := make([]string, 0, len(cfg.Notifiers))
	for name := range cfg.Notifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []notifier.Notifier
	for _, name := range names {
		nc := cfg.Notifiers[name]
		if !nc.Enabled {
			continue
		}
		switch name {
		case "telegram":
			chatID, err := strconv.ParseInt(nc.ChatID, 10, 64)
			if err != nil {
				return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("telegram chat_id: %w", err))
			}
			out = append(out, telegram.New(nc.BotToken, chatID))
		case "webhook":
			out = append(out, webhook.New(nc.URL, nc.Headers))
		default:
			log.Warn("unknown notifier, skipping", zap.String("notifier", name))
		}
	}
	return out, nil
}

func buildArchiver(cfg *config.Config, log *zap.Logger) (*archive.Archiver, error) {
	ac := cfg.Storage.Archive
	var storage archive.Storage
	switch ac.Type {
	case "":
		return nil, nil
	case "localfs":
		path := ac.Path
		if path == "" {
			path = "data/archive"
		}
		fs, err := archive.NewLocalFS(path)
		if err != nil {
			return nil, err
		}
		storage = fs
	case "s3":
		s3, err := archive.NewS3(archive.S3Config{
			Bucket:    ac.S3.Bucket,
			Endpoint:  ac.S3.Endpoint,
			Region:    ac.S3.Region,
			AccessKey: ac.S3.AccessKey,
			SecretKey: ac.S3.SecretKey,
			Prefix:    ac.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		storage = s3
	}
	return archive.NewArchiver(storage, log.Named("archive")), nil
}

// buildCache returns the sentiment cache and a close func.
func buildCache(ctx context.Context, cfg *config.Config) (cache.SentimentCache, func() error, error) {
	nop := func() error { return nil }
	switch cfg.Cache.Type {
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, nop, err
		}
		return r, r.Close, nil
	case "memory", "":
		return cache.NewMemory(cfg.Cache.TTL), nop, nil
	}
	return nil, nop, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("cache type %q", cfg.Cache.Type))
}

func routerConfig(rc config.RouterConfig) router.Config {
	recs := make([]core.Recommendation, len(rc.Recommendations))
	for i, r := range rc.Recommendations {
		recs[i] = core.Recommendation(r)
	}
	return router.Config{
		MinConfidence:          rc.MinConfidence,
		CooldownDuration:       time.Duration(rc.CooldownHours) * time.Hour,
		EnabledRecommendations: recs,
		ConflictSeverityFloor:  rc.ConflictSeverityFloor,
	}
}

func buildAlerts(ac config.AlertsConfig, notifiers []notifier.Notifier, log *zap.Logger) *alert.Evaluator {
	if !ac.Enabled || len(ac.Rules) == 0 {
		return nil
	}
	rules := make([]alert.Rule, len(ac.Rules))
	for i, r := range ac.Rules {
		rules[i] = alert.Rule{
			Name:     r.Name,
			Expr:     r.Expr,
			For:      r.For,
			Severity: r.Severity,
			Message:  r.Message,
			Symbols:  r.Symbols,
		}
	}
	targets := make([]alert.Notifier, len(notifiers))
	for i, n := range notifiers {
		targets[i] = n
	}
	e := alert.NewEvaluator(rules, targets, log.Named("alert"))
	if ac.Cooldown > 0 {
		e.SetCooldown(ac.Cooldown)
	}
	return e
}

func watchlistItems(items []config.WatchlistItem) []app.WatchlistItem {
	out := make([]app.WatchlistItem, len(items))
	for i, it := range items {
		out[i] = app.WatchlistItem{
			Symbol: it.Symbol,
			Name:   it.Name,
			Mode:   core.AnalysisType(it.Mode),
		}
	}
	return out
}
