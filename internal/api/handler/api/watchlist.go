package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/prism/internal/api/response"
	"github.com/newthinker/prism/internal/app"
	"github.com/newthinker/prism/internal/core"
)

// WatchlistApp defines the interface needed from app.App.
type WatchlistApp interface {
	GetWatchlistItems() []app.WatchlistItem
	AddToWatchlist(item app.WatchlistItem) (app.WatchlistItem, bool)
	RemoveFromWatchlist(symbol string) bool
}

// WatchlistHandler handles watchlist API requests.
type WatchlistHandler struct {
	app WatchlistApp
}

// NewWatchlistHandler creates a new watchlist handler.
func NewWatchlistHandler(app WatchlistApp) *WatchlistHandler {
	return &WatchlistHandler{app: app}
}

// AddRequest is the request body for adding a symbol.
type AddRequest struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
	Market string `json:"market,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

// List returns all watchlist items.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.app.GetWatchlistItems()
	response.JSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// Add adds or updates a symbol. New symbols answer 201, updates 200.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, errors.New("symbol is required")))
		return
	}

	item := app.WatchlistItem{
		Symbol: req.Symbol,
		Name:   req.Name,
		Market: core.Market(strings.ToUpper(req.Market)),
	}
	if req.Mode != "" {
		mode, err := parseMode(req.Mode)
		if err != nil {
			response.Fail(w, err)
			return
		}
		item.Mode = mode
	}

	item, added := h.app.AddToWatchlist(item)
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	response.JSON(w, status, map[string]any{
		"item":  item,
		"added": added,
	})
}

// Remove removes a symbol: DELETE /api/v1/watchlist/{symbol}.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if !h.app.RemoveFromWatchlist(symbol) {
		response.Fail(w, core.ErrSymbolNotFound)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"symbol":  strings.ToUpper(symbol),
		"removed": true,
	})
}
