package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/orebase/mine-maintenance/internal/workflow"
)

// ReportsHandler exposes the maintenance report workflow over HTTP.
type ReportsHandler struct {
	reports *workflow.ReportService
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reports *workflow.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// Register attaches the report routes to a mux.
func (h *ReportsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/maintenance/reports", h.Submit)
	mux.HandleFunc("GET /api/maintenance/reports/{id}", h.Get)
	mux.HandleFunc("GET /api/maintenance/reports/ticket/{ticketId}", h.GetByTicket)
	mux.HandleFunc("GET /api/maintenance/operators/{operatorId}/reports", h.OperatorReports)
	mux.HandleFunc("GET /api/maintenance/operators/{operatorId}/summary", h.OperatorSummary)
	mux.HandleFunc("PUT /api/maintenance/reports/{id}/status", h.UpdateStatus)
	mux.HandleFunc("POST /api/maintenance/reports/{id}/close", h.Close)
	mux.HandleFunc("POST /api/maintenance/reports/{id}/reopen", h.Reopen)
}

// Submit handles operator fault report submission.
func (h *ReportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req workflow.SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, warnings, err := h.reports.SubmitReport(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	logWarnings("submit report", warnings)

	writeJSON(w, http.StatusCreated, report)
}

// Get returns a report by id.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetByTicket returns a report by its ticket id.
func (h *ReportsHandler) GetByTicket(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetReportByTicket(r.Context(), r.PathValue("ticketId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// OperatorReports lists an operator's reports.
func (h *ReportsHandler) OperatorReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.OperatorReports(r.Context(), r.PathValue("operatorId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// OperatorSummary returns an operator's report counts.
func (h *ReportsHandler) OperatorSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.OperatorSummary(r.Context(), r.PathValue("operatorId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// UpdateStatus applies a status transition to a report.
func (h *ReportsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, warnings, err := h.reports.UpdateReportStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	logWarnings("update report status", warnings)

	writeJSON(w, http.StatusOK, report)
}

// Close closes a resolved report on behalf of its operator.
func (h *ReportsHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorID string `json:"operator_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, warnings, err := h.reports.CloseReport(r.Context(), r.PathValue("id"), req.OperatorID)
	if err != nil {
		writeError(w, err)
		return
	}
	logWarnings("close report", warnings)

	writeJSON(w, http.StatusOK, report)
}

// Reopen puts a resolved or closed report back in progress.
func (h *ReportsHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	report, err := h.reports.ReopenReport(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
