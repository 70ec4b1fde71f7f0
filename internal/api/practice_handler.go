package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/service"
)

// PracticeAssigner assigns practice items to learners.
type PracticeAssigner interface {
	AssignAsync(
		ctx context.Context,
		ownerID uuid.UUID,
		params *domain.PracticeGenerationParams,
		webhookURL string,
	) (*domain.Job, error)
	AssignSync(ctx context.Context, params *domain.PracticeGenerationParams) (*domain.PracticeGenerationResult, error)
}

// RatingUpdater applies practice outcomes to skill ratings.
type RatingUpdater interface {
	Complete(ctx context.Context, in service.CompletionInput) (*service.CompletionResult, error)
}

// PracticeHandler handles practice assignment and completion requests.
type PracticeHandler struct {
	practice      PracticeAssigner
	ratings       RatingUpdater
	publicBaseURL string
	logger        *slog.Logger
}

// NewPracticeHandler creates a new PracticeHandler. publicBaseURL prefixes
// the URLs returned for queued jobs; when empty they are derived from the
// request.
func NewPracticeHandler(
	practice PracticeAssigner,
	ratings RatingUpdater,
	publicBaseURL string,
	logger *slog.Logger,
) *PracticeHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PracticeHandler")
	}

	return &PracticeHandler{
		practice:      practice,
		ratings:       ratings,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With(slog.String("component", "practice_handler")),
	}
}

// AssignAsync handles POST /practice/assign/async requests.
// It queues a practice_generation job and returns 202 with the URLs the
// client uses to follow it.
func (h *PracticeHandler) AssignAsync(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req AssignPracticeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ownerID, ok := resolveOwner(r, req.LearnerID)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner could not be determined")
		return
	}

	job, err := h.practice.AssignAsync(r.Context(), ownerID, req.Params(), req.WebhookURL)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to queue practice assignment")
		return
	}

	base := h.baseURL(r)
	resp := AssignAsyncResponse{
		JobID:        job.ID,
		Status:       job.Status,
		StatusURL:    fmt.Sprintf("%s/jobs/%s", base, job.ID),
		WebSocketURL: fmt.Sprintf("%s/jobs/%s/ws", websocketBase(base), job.ID),
	}

	log.Debug("practice assignment queued",
		slog.String("job_id", job.ID.String()),
		slog.String("owner_id", ownerID.String()))
	w.Header().Set("Location", resp.StatusURL)
	shared.RespondWithJSON(w, r, http.StatusAccepted, resp)
}

// AssignSync handles POST /practice/assign requests.
// It runs the selector within the request and returns the result directly.
func (h *PracticeHandler) AssignSync(w http.ResponseWriter, r *http.Request) {
	var req AssignPracticeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.practice.AssignSync(r.Context(), req.Params())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to assign practice items")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Complete handles POST /practice/complete requests.
// It applies one attempt to the learner's skill rating.
func (h *PracticeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CompletePracticeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.ratings.Complete(r.Context(), service.CompletionInput{
		LearnerID:   req.LearnerID,
		Subject:     req.Subject,
		ItemRating:  req.ItemRating,
		Performance: *req.Performance,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record practice result")
		return
	}

	log.Debug("practice result recorded",
		slog.String("learner_id", result.LearnerID.String()),
		slog.Int("old_rating", result.OldRating),
		slog.Int("new_rating", result.NewRating))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

func (h *PracticeHandler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// websocketBase swaps an http(s) base URL for its ws(s) counterpart.
func websocketBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
