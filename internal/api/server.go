// Package api exposes analysis, results, sessions and the watchlist over
// HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/api/handler/api"
	"github.com/newthinker/prism/internal/api/job"
	"github.com/newthinker/prism/internal/api/middleware"
	"github.com/newthinker/prism/internal/api/response"
	"github.com/newthinker/prism/internal/app"
	"github.com/newthinker/prism/internal/explain"
	"github.com/newthinker/prism/internal/metrics"
	"github.com/newthinker/prism/internal/session"
	"github.com/newthinker/prism/internal/storage/archive"
	"github.com/newthinker/prism/internal/storage/cache"
)

// Server represents the HTTP server for PRISM
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
	apiKey     string
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Dependencies are the services behind the handlers. App is required;
// a nil Jobs, Sessions or Explainer gets an in-memory default, and nil
// Metrics, Archiver or SentimentCache disables that feature.
type Dependencies struct {
	App            *app.App
	Jobs           *job.Store
	Sessions       *session.Store
	Explainer      *explain.Explainer
	Archiver       *archive.Archiver
	SentimentCache cache.SentimentCache
	Metrics        *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.App == nil {
		return nil, fmt.Errorf("api: app is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Jobs == nil {
		deps.Jobs = job.NewStore(100, time.Hour)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(session.DefaultMaxSize, session.DefaultTTL)
	}
	if deps.Explainer == nil {
		deps.Explainer = explain.New(nil, explain.Config{}, logger)
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
		deps:   deps,
		apiKey: cfg.APIKey,
	}
	s.setupRoutes(cfg.MetricsPath)

	mws := []func(http.Handler) http.Handler{metrics.LoggingMiddleware(logger)}
	if deps.Metrics != nil {
		mws = append(mws, metrics.HTTPMiddleware(deps.Metrics))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // explanations wait on the LLM
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(metricsPath string) {
	d := s.deps

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if d.Metrics != nil {
		s.mux.Handle("GET "+metricsPath, promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{Registry: d.Metrics}))
	}

	analysisH := api.NewAnalysisHandler(d.App, d.Jobs, s.logger)
	s.v1("GET /api/v1/analysis/{symbol}", analysisH.Get)
	s.v1("POST /api/v1/analysis/run", analysisH.Run)
	s.v1("GET /api/v1/jobs", analysisH.Jobs)
	s.v1("GET /api/v1/jobs/{id}", analysisH.Job)

	var cacheRec api.CacheRecorder
	if d.Metrics != nil {
		cacheRec = d.Metrics
	}
	sentimentH := api.NewSentimentHandler(d.App, d.SentimentCache, cacheRec, s.logger)
	s.v1("GET /api/v1/sentiment/{symbol}", sentimentH.Get)

	resultsH := api.NewResultsHandler(d.App.Results(), d.Archiver)
	s.v1("GET /api/v1/results", resultsH.List)
	s.v1("GET /api/v1/results/{id}", resultsH.GetByID)
	s.v1("GET /api/v1/results/latest/{symbol}", resultsH.Latest)
	s.v1("GET /api/v1/archive/{date}", resultsH.Archive)

	watchlistH := api.NewWatchlistHandler(d.App)
	s.v1("GET /api/v1/watchlist", watchlistH.List)
	s.v1("POST /api/v1/watchlist", watchlistH.Add)
	s.v1("DELETE /api/v1/watchlist/{symbol}", watchlistH.Remove)

	var gauge func(int)
	if d.Metrics != nil {
		gauge = d.Metrics.SetSessionsActive
	}
	sessionH := api.NewSessionHandler(d.App, d.App.Results(), d.Sessions, d.Explainer, gauge)
	s.v1("POST /api/v1/sessions", sessionH.Create)
	s.v1("GET /api/v1/sessions/{id}", sessionH.Get)
	s.v1("POST /api/v1/sessions/{id}/explain", sessionH.Explain)
	s.v1("DELETE /api/v1/sessions/{id}", sessionH.Delete)

	s.v1("GET /api/v1/stats", s.handleStats)
	s.v1("GET /api/v1/alerts", s.handleAlerts)
}

// v1 registers an authenticated route.
func (s *Server) v1(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, middleware.APIKeyAuth(s.apiKey)(h))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"watchlist": len(s.deps.App.GetWatchlist()),
		"llm":       s.deps.Explainer.HasLLM(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.deps.App.GetStats()
	stats["sessions"] = s.deps.Sessions.Len()
	stats["jobs"] = len(s.deps.Jobs.List())
	response.JSON(w, http.StatusOK, stats)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	alerts := s.deps.App.RecentAlerts(limit)
	response.JSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
