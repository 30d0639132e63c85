package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/newthinker/prism/internal/core"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Analysis  AnalysisConfig            `mapstructure:"analysis"`
	Sentiment SentimentConfig           `mapstructure:"sentiment"`
	Providers ProvidersConfig           `mapstructure:"providers"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Cache     CacheConfig               `mapstructure:"cache"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers" validate:"dive"`
	Router    RouterConfig              `mapstructure:"router"`
	Watchlist []WatchlistItem           `mapstructure:"watchlist" validate:"dive"`
	Schedule  ScheduleConfig            `mapstructure:"schedule"`
	LLM       LLMConfig                 `mapstructure:"llm"`
	Sessions  SessionConfig             `mapstructure:"sessions"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Alerts    AlertsConfig              `mapstructure:"alerts"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode   string `mapstructure:"mode" validate:"omitempty,oneof=debug release"`
	APIKey string `mapstructure:"api_key"`
}

// AnalysisConfig tunes scoring and snapshot fetching.
type AnalysisConfig struct {
	FundamentalWeight      float64          `mapstructure:"fundamental_weight" validate:"gte=0,lte=1"`
	TechnicalWeight        float64          `mapstructure:"technical_weight" validate:"gte=0,lte=1"`
	SentimentWeight        float64          `mapstructure:"sentiment_weight" validate:"gte=0,lte=1"`
	MinSentimentConfidence float64          `mapstructure:"min_sentiment_confidence" validate:"gte=0,lte=1"`
	ConflictThreshold      float64          `mapstructure:"conflict_threshold" validate:"gte=0,lte=1"`
	Thresholds             ThresholdsConfig `mapstructure:"thresholds"`
	FetchTimeout           time.Duration    `mapstructure:"fetch_timeout" validate:"gte=0"`
	DaysBack               int              `mapstructure:"days_back" validate:"gte=0,lte=90"`
	Timeframe              string           `mapstructure:"timeframe" validate:"omitempty,oneof=1h 1d 1wk 1mo"`
	MaxConcurrency         int              `mapstructure:"max_concurrency" validate:"gte=0"`
	DefaultMode            string           `mapstructure:"default_mode" validate:"omitempty,oneof=comprehensive fundamental technical"`
}

// ThresholdsConfig holds inclusive lower bounds on the overall score.
type ThresholdsConfig struct {
	StrongBuy float64 `mapstructure:"strong_buy" validate:"gte=0,lte=100"`
	Buy       float64 `mapstructure:"buy" validate:"gte=0,lte=100"`
	Hold      float64 `mapstructure:"hold" validate:"gte=0,lte=100"`
	Sell      float64 `mapstructure:"sell" validate:"gte=0,lte=100"`
}

type SentimentConfig struct {
	HalfLife        time.Duration       `mapstructure:"half_life" validate:"gte=0"`
	NewsWeight      float64             `mapstructure:"news_weight" validate:"gte=0,lte=1"`
	TrendThreshold  float64             `mapstructure:"trend_threshold" validate:"gte=0,lte=1"`
	TopKeywordLimit int                 `mapstructure:"top_keyword_limit" validate:"gte=0"`
	Aliases         map[string][]string `mapstructure:"aliases"`
}

type ProvidersConfig struct {
	Order        []string        `mapstructure:"order"`
	Yahoo        YahooConfig     `mapstructure:"yahoo"`
	Eastmoney    EastmoneyConfig `mapstructure:"eastmoney"`
	RSS          []RSSConfig     `mapstructure:"rss" validate:"dive"`
	Reddit       RedditConfig    `mapstructure:"reddit"`
	Static       StaticConfig    `mapstructure:"static"`
	FeedCacheTTL time.Duration   `mapstructure:"feed_cache_ttl" validate:"gte=0"`
}

type YahooConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ChartURL          string        `mapstructure:"chart_url" validate:"omitempty,url"`
	SummaryURL        string        `mapstructure:"summary_url" validate:"omitempty,url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
	HistoryRange      string        `mapstructure:"history_range"`
}

// EastmoneyConfig enables the A-share provider for .SH and .SZ symbols.
type EastmoneyConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	QuoteURL          string        `mapstructure:"quote_url" validate:"omitempty,url"`
	HistoryURL        string        `mapstructure:"history_url" validate:"omitempty,url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
	HistoryBars       int           `mapstructure:"history_bars" validate:"gte=0"`
}

type RSSConfig struct {
	Name        string        `mapstructure:"name" validate:"required"`
	URLTemplate string        `mapstructure:"url_template"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxItems    int           `mapstructure:"max_items" validate:"gte=0"`
}

type RedditConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url" validate:"omitempty,url"`
	Subreddits        []string      `mapstructure:"subreddits"`
	UserAgent         string        `mapstructure:"user_agent"`
	Limit             int           `mapstructure:"limit" validate:"gte=0,lte=100"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// StaticConfig points at a JSON fixture file served by the static provider.
type StaticConfig struct {
	Fixtures string `mapstructure:"fixtures"`
}

type StorageConfig struct {
	Assessment AssessmentConfig `mapstructure:"assessment"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

type AssessmentConfig struct {
	MaxSize int `mapstructure:"max_size" validate:"gte=0"`
}

type ArchiveConfig struct {
	Type          string   `mapstructure:"type" validate:"omitempty,oneof=localfs s3"`
	Path          string   `mapstructure:"path"` // For localfs
	S3            S3Config `mapstructure:"s3"`   // For S3
	RetentionDays int      `mapstructure:"retention_days" validate:"gte=0"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// CacheConfig selects the sentiment cache backend.
type CacheConfig struct {
	Type  string        `mapstructure:"type" validate:"omitempty,oneof=memory redis"`
	TTL   time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Redis RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type NotifierConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	BotToken string            `mapstructure:"bot_token"`
	ChatID   string            `mapstructure:"chat_id"`
	URL      string            `mapstructure:"url" validate:"omitempty,url"`
	Headers  map[string]string `mapstructure:"headers"`
}

type RouterConfig struct {
	CooldownHours         int      `mapstructure:"cooldown_hours" validate:"gte=0"`
	MinConfidence         float64  `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	Recommendations       []string `mapstructure:"recommendations" validate:"dive,oneof=STRONG_BUY BUY HOLD SELL STRONG_SELL"`
	ConflictSeverityFloor float64  `mapstructure:"conflict_severity_floor" validate:"gte=0,lte=1"`
}

type WatchlistItem struct {
	Symbol string `mapstructure:"symbol" validate:"required"`
	Name   string `mapstructure:"name"`
	Mode   string `mapstructure:"mode" validate:"omitempty,oneof=comprehensive fundamental technical"`
}

// ScheduleConfig drives the watchlist cycle. An empty Cron disables it.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

type LLMConfig struct {
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=claude openai ollama"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Claude   ClaudeConfig  `mapstructure:"claude"`
	OpenAI   OpenAIConfig  `mapstructure:"openai"`
	Ollama   OllamaConfig  `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// SessionConfig bounds the explanation session store.
type SessionConfig struct {
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	MaxSize int           `mapstructure:"max_size" validate:"gte=0"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AlertsConfig holds alerts configuration.
type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	Rules    []AlertRule   `mapstructure:"rules" validate:"dive"`
}

// AlertRule defines a single alert rule.
type AlertRule struct {
	Name     string        `mapstructure:"name" validate:"required"`
	Expr     string        `mapstructure:"expr" validate:"required"`
	For      time.Duration `mapstructure:"for" validate:"gte=0"`
	Severity string        `mapstructure:"severity" validate:"omitempty,oneof=INFO WARNING CRITICAL"`
	Message  string        `mapstructure:"message"`
	Symbols  []string      `mapstructure:"symbols"`
}

// Load reads configuration from file on top of Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config that runs without a file.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		Analysis: AnalysisConfig{
			FundamentalWeight:      0.6,
			TechnicalWeight:        0.4,
			SentimentWeight:        0.15,
			MinSentimentConfidence: 0.3,
			ConflictThreshold:      0.3,
			Thresholds: ThresholdsConfig{
				StrongBuy: 80,
				Buy:       65,
				Hold:      45,
				Sell:      30,
			},
			FetchTimeout:   10 * time.Second,
			DaysBack:       7,
			Timeframe:      "1d",
			MaxConcurrency: 4,
			DefaultMode:    "comprehensive",
		},
		Sentiment: SentimentConfig{
			HalfLife:        24 * time.Hour,
			NewsWeight:      0.6,
			TrendThreshold:  0.1,
			TopKeywordLimit: 10,
		},
		Providers: ProvidersConfig{
			Yahoo:        YahooConfig{Enabled: true},
			FeedCacheTTL: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Assessment: AssessmentConfig{MaxSize: 1000},
			Archive: ArchiveConfig{
				Type:          "localfs",
				RetentionDays: 90,
			},
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  15 * time.Minute,
		},
		Router: RouterConfig{
			CooldownHours:         1,
			MinConfidence:         0.5,
			Recommendations:       []string{"STRONG_BUY", "BUY", "SELL", "STRONG_SELL"},
			ConflictSeverityFloor: 0.6,
		},
		LLM: LLMConfig{
			Timeout: 60 * time.Second,
		},
		Sessions: SessionConfig{
			TTL:     time.Hour,
			MaxSize: 100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Alerts: AlertsConfig{
			Enabled:  false,
			Cooldown: 5 * time.Minute,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("%s is required", fe.Namespace()))
			}
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	th := c.Analysis.Thresholds
	if th != (ThresholdsConfig{}) && !(th.StrongBuy > th.Buy && th.Buy > th.Hold && th.Hold > th.Sell) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("thresholds must be strictly descending: strong_buy > buy > hold > sell"))
	}

	if c.Storage.Archive.Type == "s3" && c.Storage.Archive.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("s3 bucket required when archive type is s3"))
	}
	if c.Cache.Type == "redis" && c.Cache.Redis.Addr == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("redis addr required when cache type is redis"))
	}

	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		switch name {
		case "telegram":
			if n.BotToken == "" || n.ChatID == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("telegram bot_token and chat_id required when enabled"))
			}
		case "webhook":
			if n.URL == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("webhook url required when enabled"))
			}
		}
	}

	// LLM validation - if provider set, check config exists
	switch c.LLM.Provider {
	case "claude":
		if c.LLM.Claude.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("claude api_key required when provider is claude"))
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("openai api_key required when provider is openai"))
		}
	case "ollama":
		if c.LLM.Ollama.Endpoint == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("ollama endpoint required when provider is ollama"))
		}
	}

	return nil
}
