package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/store"
)

// MaxJobListLimit caps the page size of GET /jobs.
const MaxJobListLimit = 100

// JobReader reads jobs on behalf of their owner.
type JobReader interface {
	GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, filter store.JobFilter) ([]*domain.Job, error)
}

// JobCanceller requests cancellation of an owned job.
type JobCanceller interface {
	Cancel(ctx context.Context, id, ownerID uuid.UUID) (*domain.Job, error)
}

// JobHandler handles job status, listing and cancellation requests.
type JobHandler struct {
	jobs      JobReader
	canceller JobCanceller
	logger    *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs JobReader, canceller JobCanceller, logger *slog.Logger) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}

	return &JobHandler{
		jobs:      jobs,
		canceller: canceller,
		logger:    logger.With(slog.String("component", "job_handler")),
	}
}

// GetJob handles GET /jobs/{job_id} requests.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ownerID, jobID, ok := handleOwnerAndPathUUID(w, r, "job_id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	job, err := h.jobs.GetForOwner(r.Context(), jobID, ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get job")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// ListJobs handles GET /jobs requests.
// Supported query parameters: status, job_type, limit and offset.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ownerFromRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	filter, err := parseJobFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	filter.OwnerID = ownerID

	jobs, err := h.jobs.List(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list jobs")
		return
	}

	resp := JobListResponse{
		Jobs:   make([]JobResponse, 0, len(jobs)),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, jobToResponse(job))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// CancelJob handles POST /jobs/{job_id}/cancel requests.
// Pending jobs are cancelled immediately; running jobs stop at their next
// checkpoint. Finished jobs yield 409.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	ownerID, jobID, ok := handleOwnerAndPathUUID(w, r, "job_id", log)
	if !ok {
		return
	}

	job, err := h.canceller.Cancel(r.Context(), jobID, ownerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel job")
		return
	}

	log.Info("job cancellation requested",
		slog.String("job_id", jobID.String()),
		slog.String("status", string(job.Status)))
	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

func parseJobFilter(r *http.Request) (store.JobFilter, error) {
	q := r.URL.Query()
	filter := store.JobFilter{Limit: store.DefaultJobListLimit}

	if raw := q.Get("status"); raw != "" {
		status := domain.JobStatus(raw)
		if !status.IsValid() {
			return filter, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, raw)
		}
		filter.Status = status
	}

	if raw := q.Get("job_type"); raw != "" {
		if domain.JobType(raw) != domain.JobTypePracticeGeneration {
			return filter, fmt.Errorf("%w: unknown job_type %q", domain.ErrValidation, raw)
		}
		filter.Type = domain.JobType(raw)
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxJobListLimit {
			return filter, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, MaxJobListLimit)
		}
		filter.Limit = limit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("%w: offset must be non-negative", domain.ErrValidation)
		}
		filter.Offset = offset
	}

	return filter, nil
}
