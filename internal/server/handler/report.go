package handler

import (
	"log/slog"
	"net/http"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/tracker"
)

// ReportService defines the read-only reporting methods the handler requires.
type ReportService interface {
	StatsByStrategy() domain.StrategyStats
	Account() domain.AccountSummary
	Overview() tracker.Overview
}

// ReportHandler serves the aggregate reporting endpoints.
type ReportHandler struct {
	reports ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a ReportHandler with the given service and logger.
func NewReportHandler(reports ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger,
	}
}

// GetStats returns trade statistics, overall and per strategy.
// GET /api/stats
func (h *ReportHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reports.StatsByStrategy())
}

// GetAccount returns the paper account summary.
// GET /api/account
func (h *ReportHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reports.Account())
}

// GetOverview returns the composite dashboard view.
// GET /api/overview
func (h *ReportHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reports.Overview())
}
