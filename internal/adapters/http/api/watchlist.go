package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/pulse/internal/adapters/repository"
)

// WatchlistDependencies defines the interface for watchlist reads.
type WatchlistDependencies interface {
	Watchlist(ctx context.Context, limit int) ([]repository.WatchEntry, error)
}

// WatchlistHandler serves the projects most in need of attention.
type WatchlistHandler struct {
	deps     WatchlistDependencies
	maxLimit int
}

// NewWatchlistHandler creates a new watchlist handler.
func NewWatchlistHandler(deps WatchlistDependencies, maxLimit int) *WatchlistHandler {
	return &WatchlistHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetWatchlist handles GET /watchlist?limit=N requests. limit
// defaults to 10.
func (h *WatchlistHandler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_watchlist"
	n := defaultWatchlistLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			fail(w, NewKind(op, ErrBadRequest))
			return
		}
	}
	if h.maxLimit > 0 && n > h.maxLimit {
		fail(w, NewKind(op, ErrLimitExceeded))
		return
	}
	entries, err := h.deps.Watchlist(r.Context(), n)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toWatchEntries(entries))
}
