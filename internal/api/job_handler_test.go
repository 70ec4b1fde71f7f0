package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jobRouter(h *JobHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{job_id}", h.GetJob)
	r.Post("/jobs/{job_id}/cancel", h.CancelJob)
	return r
}

func TestJobHandler_GetJob(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	job := newTestJob(owner)

	jobs := &MockJobs{}
	jobs.On("GetForOwner", mock.Anything, job.ID, owner).Return(job, nil)
	jobs.On("GetForOwner", mock.Anything, mock.Anything, mock.Anything).Return(nil, store.ErrJobNotFound)
	router := jobRouter(NewJobHandler(jobs, jobs, testLogger()))

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/jobs/%s?learner_id=%s", job.ID, owner), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, job.ID.String(), resp["job_id"])
		assert.Equal(t, "practice_generation", resp["job_type"])
		assert.Equal(t, "pending", resp["status"])
		assert.EqualValues(t, 0, resp["progress_percent"])
		assert.NotContains(t, resp, "result")
		assert.NotContains(t, resp, "error")
	})

	t.Run("owner from token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String(), nil)
		req = req.WithContext(shared.WithOwnerID(req.Context(), owner))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("someone else's job is not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/jobs/%s?learner_id=%s", job.ID, uuid.New()), nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid?learner_id="+owner.String(), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("owner required", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String(), nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestJobHandler_ListJobs(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	jobs := &MockJobs{}
	jobs.On("List", mock.Anything, store.JobFilter{
		OwnerID: owner,
		Status:  domain.JobStatusPending,
		Type:    domain.JobTypePracticeGeneration,
		Limit:   10,
		Offset:  5,
	}).Return([]*domain.Job{newTestJob(owner), newTestJob(owner)}, nil)
	router := jobRouter(NewJobHandler(jobs, jobs, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/jobs?status=pending&job_type=practice_generation&limit=10&offset=5&learner_id="+owner.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Jobs, 2)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, 5, resp.Offset)
	jobs.AssertExpectations(t)

	for _, query := range []string{"status=done", "job_type=memo", "limit=0", "limit=101", "offset=-1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?"+query+"&learner_id="+owner.String(), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestJobHandler_CancelJob(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	pending := newTestJob(owner)
	cancelled := *pending
	cancelled.Status = domain.JobStatusCancelled
	finished := uuid.New()

	jobs := &MockJobs{}
	jobs.On("Cancel", mock.Anything, pending.ID, owner).Return(&cancelled, nil)
	jobs.On("Cancel", mock.Anything, finished, owner).
		Return(nil, fmt.Errorf("%w: job is completed", domain.ErrInvalidTransition))
	router := jobRouter(NewJobHandler(jobs, jobs, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/jobs/%s/cancel?learner_id=%s", pending.ID, owner), nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, domain.JobStatusCancelled, resp.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/jobs/%s/cancel?learner_id=%s", finished, owner), nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
