package jobs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/services/history"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/handlers/response"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// JobHandler serves the job history
type JobHandler struct {
	historyService history.IHistoryService
	logger         primary.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(historyService history.IHistoryService, logger primary.Logger) *JobHandler {
	return &JobHandler{
		historyService: historyService,
		logger:         logger,
	}
}

// RegisterRoutes registers the API routes for JobHandler
func (h *JobHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/jobs", h.ListJobs).Methods("GET")
	router.HandleFunc("/api/jobs/{jobId}", h.GetJob).Methods("GET")
}

// ListJobs returns the most recent job records. ?limit= caps the count.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLimit)
	}

	recs, err := h.historyService.ListRecords(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list jobs", "error", err)
		response.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	response.WriteSuccess(w, ListJobsResponse{
		Jobs:    recs,
		Dropped: h.historyService.Dropped(),
	})
}

// GetJob handles job retrieval requests
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobIDStr := vars["jobId"]

	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		h.logger.Debug("Invalid job ID", "id", jobIDStr)
		response.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	rec, err := h.historyService.GetRecord(r.Context(), jobID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		response.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", "error", err)
		response.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}

	response.WriteSuccess(w, rec)
}
