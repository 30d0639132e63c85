// Package api holds the JSON handlers mounted under /api/v1.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/prism/internal/analysis"
	"github.com/newthinker/prism/internal/api/job"
	"github.com/newthinker/prism/internal/api/response"
	"github.com/newthinker/prism/internal/app"
	"github.com/newthinker/prism/internal/core"
)

// maxBatchSymbols bounds one asynchronous run.
const maxBatchSymbols = 50

// AnalysisApp defines the interface needed from app.App.
type AnalysisApp interface {
	Analyze(ctx context.Context, symbol string, mode core.AnalysisType) (*core.AnalysisResult, error)
	AnalyzeMany(ctx context.Context, symbols []string, mode core.AnalysisType) []analysis.Outcome
	GetWatchlist() []string
	RunOnce(ctx context.Context) app.CycleReport
}

// AnalysisHandler handles analysis API requests.
type AnalysisHandler struct {
	app    AnalysisApp
	jobs   *job.Store
	logger *zap.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(app AnalysisApp, jobs *job.Store, logger *zap.Logger) *AnalysisHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisHandler{app: app, jobs: jobs, logger: logger}
}

// Get analyzes one symbol synchronously: GET /api/v1/analysis/{symbol}?mode=.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	mode, err := parseMode(r.URL.Query().Get("mode"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	result, err := h.app.Analyze(r.Context(), r.PathValue("symbol"), mode)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// RunRequest is the body of POST /api/v1/analysis/run. Without symbols the
// whole watchlist runs as one cycle, alerts and routing included.
type RunRequest struct {
	Symbols []string `json:"symbols"`
	Mode    string   `json:"mode"`
}

// BatchItem is one symbol's outcome in a finished batch job.
type BatchItem struct {
	Symbol string               `json:"symbol"`
	Result *core.AnalysisResult `json:"result,omitempty"`
	Error  *core.Error          `json:"error,omitempty"`
}

// Run starts an asynchronous analysis and returns its job.
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
			return
		}
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if len(req.Symbols) > maxBatchSymbols {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest,
			fmt.Errorf("at most %d symbols per run", maxBatchSymbols)))
		return
	}

	// The job outlives the request.
	ctx := context.WithoutCancel(r.Context())

	var j job.Job
	if len(req.Symbols) == 0 {
		j = h.jobs.Create("cycle", len(h.app.GetWatchlist()))
		go h.runCycle(ctx, j.ID)
	} else {
		j = h.jobs.Create("analysis", len(req.Symbols))
		go h.runBatch(ctx, j.ID, req.Symbols, mode)
	}

	response.JSON(w, http.StatusAccepted, j)
}

func (h *AnalysisHandler) runCycle(ctx context.Context, id string) {
	h.jobs.Update(id, func(j *job.Job) { j.Status = job.StatusRunning })
	report := h.app.RunOnce(ctx)
	h.jobs.Update(id, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = report.Analyzed + len(report.Failed)
		j.Result = report
	})
}

func (h *AnalysisHandler) runBatch(ctx context.Context, id string, symbols []string, mode core.AnalysisType) {
	h.jobs.Update(id, func(j *job.Job) { j.Status = job.StatusRunning })

	outcomes := h.app.AnalyzeMany(ctx, symbols, mode)
	items := make([]BatchItem, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		items[i] = BatchItem{Symbol: o.Symbol, Result: o.Result}
		if o.Err != nil {
			items[i].Error = asCoreError(o.Err)
			failed++
		}
	}

	h.jobs.Update(id, func(j *job.Job) {
		j.Progress = len(outcomes)
		j.Result = items
		j.Status = job.StatusComplete
		if failed == len(outcomes) {
			j.Status = job.StatusFailed
			j.Error = core.WrapError(core.ErrInsufficientData, errors.New("every symbol failed"))
		}
	})
	h.logger.Info("batch analysis finished",
		zap.String("job_id", id),
		zap.Int("symbols", len(symbols)),
		zap.Int("failed", failed),
	)
}

// Job returns an async job: GET /api/v1/jobs/{id}.
func (h *AnalysisHandler) Job(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// Jobs lists live jobs, newest first.
func (h *AnalysisHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	response.JSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func parseMode(s string) (core.AnalysisType, error) {
	mode, ok := core.ParseAnalysisType(strings.TrimSpace(s))
	if !ok {
		return "", core.WrapError(core.ErrInvalidRequest, fmt.Errorf("unknown mode %q", s))
	}
	return mode, nil
}

func asCoreError(err error) *core.Error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce
	}
	return core.WrapError(&core.Error{Code: "INTERNAL_ERROR", Message: "analysis failed"}, err)
}
