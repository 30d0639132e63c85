package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/newthinker/prism/internal/api/response"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/storage/archive"
	"github.com/newthinker/prism/internal/storage/assessment"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ResultsHandler serves stored analysis results.
type ResultsHandler struct {
	store    assessment.Store
	archiver *archive.Archiver
}

// NewResultsHandler creates a results handler. archiver may be nil.
func NewResultsHandler(store assessment.Store, archiver *archive.Archiver) *ResultsHandler {
	return &ResultsHandler{store: store, archiver: archiver}
}

// List returns results matching query parameters.
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	results, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	total, _ := h.store.Count(r.Context(), filter)

	response.JSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetByID returns a single result: GET /api/v1/results/{id}.
func (h *ResultsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Latest returns the newest result for a symbol.
func (h *ResultsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.Latest(r.Context(), r.PathValue("symbol"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// Archive returns archived results for a UTC day:
// GET /api/v1/archive/{date}?symbol=.
func (h *ResultsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		response.Fail(w, core.WrapError(core.ErrNoData, errors.New("archive disabled")))
		return
	}
	day, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	results, err := h.archiver.Day(r.Context(), day, r.URL.Query().Get("symbol"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"date":    day.Format("2006-01-02"),
		"results": results,
		"count":   len(results),
	})
}

func parseListFilter(r *http.Request) (assessment.ListFilter, error) {
	q := r.URL.Query()
	filter := assessment.ListFilter{
		Symbol:         q.Get("symbol"),
		Recommendation: core.Recommendation(q.Get("recommendation")),
		RiskLevel:      core.RiskLevel(q.Get("risk_level")),
		Limit:          defaultListLimit,
	}

	if v := q.Get("conflict"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, core.WrapError(core.ErrInvalidRequest, err)
		}
		filter.ConflictOnly = b
	}

	var err error
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		return filter, err
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, core.WrapError(core.ErrInvalidRequest, errors.New("limit must be a positive integer"))
		}
		filter.Limit = min(n, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, core.WrapError(core.ErrInvalidRequest, errors.New("offset must be a non-negative integer"))
		}
		filter.Offset = n
	}
	return filter, nil
}

// parseTime accepts RFC3339 or a bare date.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, core.WrapError(core.ErrInvalidRequest, err)
	}
	return t, nil
}
