package handler

import (
	"log/slog"
	"net/http"
)

// BotService defines the bot lifecycle methods the handler requires.
type BotService interface {
	BotStatus() map[string]bool
	SetBotActive(strategy string, active bool)
}

// BotHandler serves bot start/stop and status endpoints.
type BotHandler struct {
	bots   BotService
	logger *slog.Logger
}

// NewBotHandler creates a BotHandler with the given service and logger.
func NewBotHandler(bots BotService, logger *slog.Logger) *BotHandler {
	return &BotHandler{
		bots:   bots,
		logger: logger,
	}
}

// ListBots returns the active flag for every known strategy bot.
// GET /api/bots
func (h *BotHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	status := h.bots.BotStatus()
	if status == nil {
		status = map[string]bool{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bots": status})
}

// StartBot marks a strategy bot active so its ticks open positions again.
// POST /api/bots/{id}/start
func (h *BotHandler) StartBot(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// StopBot marks a strategy bot inactive. Open positions keep being managed;
// only new entries stop.
// POST /api/bots/{id}/stop
func (h *BotHandler) StopBot(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *BotHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bot id required")
		return
	}

	h.bots.SetBotActive(id, active)
	h.logger.Info("handler: bot state changed",
		slog.String("bot", id),
		slog.Bool("active", active),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"bot":    id,
		"active": active,
	})
}
