package handler

import (
	"log/slog"
	"net/http"

	"github.com/papertrade/dogebot/internal/domain"
)

// HistoryService defines the methods that the history handler requires.
type HistoryService interface {
	History(page, pageSize int) domain.HistoryPage
}

// HistoryHandler serves the closed-trade history endpoint.
type HistoryHandler struct {
	history HistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler with the given service and logger.
func NewHistoryHandler(history HistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// ListHistory returns one page of closed trades, newest first.
// GET /api/history?page=1&page_size=20
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePageOpts(r)
	writeJSON(w, http.StatusOK, h.history.History(page, pageSize))
}
