package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/orebase/mine-maintenance/internal/middleware"
	"github.com/orebase/mine-maintenance/internal/workflow"
)

// JobsHandler exposes the maintenance job workflow over HTTP.
type JobsHandler struct {
	jobs *workflow.JobService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs *workflow.JobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// Register attaches the job routes to a mux.
func (h *JobsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/maintenance/jobs", h.Create)
	mux.HandleFunc("GET /api/maintenance/jobs/{id}", h.Get)
	mux.HandleFunc("PUT /api/maintenance/jobs/{id}/status", h.UpdateStatus)
	mux.HandleFunc("POST /api/maintenance/jobs/{id}/complete", h.Complete)
	mux.HandleFunc("POST /api/maintenance/jobs/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /api/maintenance/jobs/bulk/status", h.BulkUpdateStatus)
	mux.HandleFunc("POST /api/maintenance/jobs/bulk/assign", h.BulkAssign)
	mux.HandleFunc("GET /api/maintenance/engineers/{engineerId}/jobs", h.EngineerJobs)
	mux.HandleFunc("GET /api/maintenance/jobs/overdue", h.Overdue)
}

// Create plans a manual maintenance job.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req workflow.CreateManualJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	createdBy := ""
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		createdBy = claims.UserID
	}

	job, warnings, err := h.jobs.CreateManualJob(r.Context(), req, createdBy)
	if err != nil {
		writeError(w, err)
		return
	}
	logWarnings("create job", warnings)

	writeJSON(w, http.StatusCreated, job)
}

// Get returns a job by id.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// UpdateStatus applies a status transition to a job.
func (h *JobsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	job, warnings, err := h.jobs.UpdateJobStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	logWarnings("update job status", warnings)

	writeJSON(w, http.StatusOK, job)
}

// Complete finishes a job with the engineer's completion data.
func (h *JobsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req workflow.CompleteJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	job, warnings, err := h.jobs.CompleteJob(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	logWarnings("complete job", warnings)

	writeJSON(w, http.StatusOK, job)
}

// Cancel aborts a job with a reason.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.CancelJob(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// BulkUpdateStatus applies one status change to several jobs. Skipped jobs
// are reported back to the caller.
func (h *JobsHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobIDs []string `json:"job_ids"`
		Status string   `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.JobIDs) == 0 {
		http.Error(w, "job_ids is required", http.StatusBadRequest)
		return
	}

	warnings, err := h.jobs.BulkUpdateStatus(r.Context(), req.JobIDs, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bulkResult(len(req.JobIDs), warnings))
}

// BulkAssign reassigns several jobs to one engineer.
func (h *JobsHandler) BulkAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobIDs     []string `json:"job_ids"`
		EngineerID string   `json:"engineer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.JobIDs) == 0 || req.EngineerID == "" {
		http.Error(w, "job_ids and engineer_id are required", http.StatusBadRequest)
		return
	}

	warnings, err := h.jobs.BulkAssignEngineer(r.Context(), req.JobIDs, req.EngineerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bulkResult(len(req.JobIDs), warnings))
}

// EngineerJobs lists the active jobs assigned to an engineer.
func (h *JobsHandler) EngineerJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.EngineerJobs(r.Context(), r.PathValue("engineerId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Overdue lists active jobs past their scheduled date. An optional region
// query parameter narrows the result.
func (h *JobsHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.OverdueJobs(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func bulkResult(requested int, warnings []workflow.Warning) map[string]interface{} {
	skipped := make([]string, 0, len(warnings))
	for _, warning := range warnings {
		skipped = append(skipped, warning.String())
	}
	return map[string]interface{}{
		"requested": requested,
		"updated":   requested - len(warnings),
		"skipped":   skipped,
	}
}
