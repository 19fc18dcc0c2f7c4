package handler

import (
	"log/slog"
	"net/http"

	"github.com/papertrade/dogebot/internal/domain"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	OpenPositions(strategy string) []domain.Position
	AllOpenPositions() map[string][]domain.Position
	PositionInfo(strategy string) (domain.Position, bool)
}

// PositionHandler serves open-position HTTP endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns open positions, either for one strategy or grouped
// by strategy when no filter is given.
// GET /api/positions?strategy=conservative
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")

	if strategy != "" {
		positions := h.positions.OpenPositions(strategy)
		if positions == nil {
			positions = []domain.Position{}
		}
		writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
		return
	}

	grouped := h.positions.AllOpenPositions()
	if grouped == nil {
		grouped = map[string][]domain.Position{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": grouped})
}

// GetPosition returns a strategy's most recently opened position, for
// callers that track a single position per strategy.
// GET /api/positions/{strategy}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	strategy := pathParam(r, "strategy")

	p, ok := h.positions.PositionInfo(strategy)
	if !ok {
		writeError(w, http.StatusNotFound, "no open position for strategy "+strategy)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
