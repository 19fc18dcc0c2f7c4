package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/papertrade/dogebot/internal/domain"
)

// SignalService defines the tick-processing methods the handler requires.
type SignalService interface {
	Update(ctx context.Context, strategy string, signal domain.Signal, price, quantity float64) ([]domain.ClosureEvent, error)
}

// SignalHandler serves the manual signal-injection endpoint.
type SignalHandler struct {
	ticks  SignalService
	logger *slog.Logger
}

// NewSignalHandler creates a SignalHandler with the given service and logger.
func NewSignalHandler(ticks SignalService, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		ticks:  ticks,
		logger: logger,
	}
}

// injectSignalRequest is the body for a manual trading signal.
type injectSignalRequest struct {
	Strategy string  `json:"strategy"`
	Signal   string  `json:"signal"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"` // optional, 0 uses the strategy default
}

// injectSignalResponse reports what the tick did.
type injectSignalResponse struct {
	Strategy string                `json:"strategy"`
	Signal   domain.Signal         `json:"signal"`
	Closed   []domain.ClosureEvent `json:"closed"`
}

// InjectSignal feeds a manual BUY/SELL/HOLD signal into the tracker, exactly
// as a strategy tick would.
// POST /api/signal
func (h *SignalHandler) InjectSignal(w http.ResponseWriter, r *http.Request) {
	var req injectSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Strategy == "" {
		writeError(w, http.StatusBadRequest, "strategy required")
		return
	}
	sig, ok := domain.ParseSignal(req.Signal)
	if !ok {
		writeError(w, http.StatusBadRequest, "signal must be BUY, SELL or HOLD")
		return
	}
	if req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	closed, err := h.ticks.Update(r.Context(), req.Strategy, sig, req.Price, req.Quantity)
	if err != nil {
		if errors.Is(err, domain.ErrZeroPriceOrQuantity) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: signal injection failed",
			slog.String("strategy", req.Strategy),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to process signal")
		return
	}

	if closed == nil {
		closed = []domain.ClosureEvent{}
	}
	writeJSON(w, http.StatusOK, injectSignalResponse{
		Strategy: req.Strategy,
		Signal:   sig,
		Closed:   closed,
	})
}
