package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/prism/internal/api/response"
	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/explain"
	"github.com/newthinker/prism/internal/llm"
	"github.com/newthinker/prism/internal/session"
	"github.com/newthinker/prism/internal/storage/assessment"
)

// SessionApp defines the interface needed from app.App.
type SessionApp interface {
	Analyze(ctx context.Context, symbol string, mode core.AnalysisType) (*core.AnalysisResult, error)
}

// SessionHandler runs explanation conversations over stored results.
type SessionHandler struct {
	app       SessionApp
	results   assessment.Store
	sessions  *session.Store
	explainer *explain.Explainer
	gauge     func(int)
}

// NewSessionHandler creates a session handler. gauge, when set, receives
// the live session count after every change.
func NewSessionHandler(app SessionApp, results assessment.Store, sessions *session.Store, explainer *explain.Explainer, gauge func(int)) *SessionHandler {
	return &SessionHandler{app: app, results: results, sessions: sessions, explainer: explainer, gauge: gauge}
}

// CreateSessionRequest picks the result to discuss: an explicit result_id,
// else the latest stored result for symbol, else a fresh analysis.
type CreateSessionRequest struct {
	Symbol   string `json:"symbol"`
	ResultID string `json:"result_id"`
	Mode     string `json:"mode"`
}

// Create opens a session: POST /api/v1/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	result, err := h.resolve(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}

	sess := h.sessions.Create(result.Symbol, result)
	h.updateGauge()
	response.JSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) resolve(ctx context.Context, req CreateSessionRequest) (*core.AnalysisResult, error) {
	if req.ResultID != "" {
		return h.results.GetByID(ctx, req.ResultID)
	}
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, core.WrapError(core.ErrInvalidRequest, errors.New("symbol or result_id is required"))
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		return nil, err
	}

	latest, err := h.results.Latest(ctx, req.Symbol)
	if err == nil && (req.Mode == "" || latest.AnalysisType == mode) {
		return latest, nil
	}
	if err != nil && !errors.Is(err, core.ErrResultNotFound) {
		return nil, err
	}
	return h.app.Analyze(ctx, req.Symbol, mode)
}

// Get returns a session: GET /api/v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.updateGauge()
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sess)
}

// ExplainRequest carries a follow-up question. Empty asks for an overview.
type ExplainRequest struct {
	Question string `json:"question"`
}

// Explain answers a question about the session's result and records the
// exchange: POST /api/v1/sessions/{id}/explain.
func (h *SessionHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req ExplainRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
			return
		}
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = explain.DefaultQuestion
	}

	sess, err := h.sessions.Get(id)
	if err != nil {
		h.updateGauge()
		response.Fail(w, err)
		return
	}

	exp, err := h.explainer.Explain(r.Context(), sess, question)
	if err != nil {
		response.Fail(w, err)
		return
	}

	if _, err := h.sessions.Append(id,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: exp.Text()},
	); err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"session_id":  id,
		"explanation": exp,
	})
}

// Delete ends a session: DELETE /api/v1/sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Evict(r.PathValue("id")); err != nil {
		response.Fail(w, err)
		return
	}
	h.updateGauge()
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) updateGauge() {
	if h.gauge != nil {
		h.gauge(h.sessions.Len())
	}
}
