package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/api/response"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/storage/cache"
)

// SentimentApp defines the interface needed from app.App.
type SentimentApp interface {
	Sentiment(ctx context.Context, symbol string) (core.SentimentData, error)
}

// CacheRecorder counts cache lookups.
type CacheRecorder interface {
	RecordCacheLookup(cache string, hit bool)
}

// SentimentHandler serves aggregated sentiment with a read-through cache.
type SentimentHandler struct {
	app      SentimentApp
	cache    cache.SentimentCache
	recorder CacheRecorder
	logger   *zap.Logger
}

// NewSentimentHandler creates a sentiment handler. c and rec may be nil.
func NewSentimentHandler(app SentimentApp, c cache.SentimentCache, rec CacheRecorder, logger *zap.Logger) *SentimentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SentimentHandler{app: app, cache: c, recorder: rec, logger: logger}
}

// Get returns sentiment for a symbol: GET /api/v1/sentiment/{symbol}.
// refresh=true bypasses the cache.
func (h *SentimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if symbol == "" {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, errors.New("symbol is required")))
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	if h.cache != nil && !refresh {
		data, err := h.cache.Get(r.Context(), symbol)
		switch {
		case err == nil:
			h.record(true)
			response.JSON(w, http.StatusOK, map[string]any{"sentiment": data, "cached": true})
			return
		case errors.Is(err, core.ErrCacheMiss):
			h.record(false)
		default:
			h.logger.Warn("sentiment cache read failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	data, err := h.app.Sentiment(r.Context(), symbol)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(r.Context(), data); err != nil {
			h.logger.Warn("sentiment cache write failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{"sentiment": data, "cached": false})
}

func (h *SentimentHandler) record(hit bool) {
	if h.recorder != nil {
		h.recorder.RecordCacheLookup("sentiment", hit)
	}
}
