package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/selector"
)

// PracticeSelector chooses practice items for a request.
type PracticeSelector interface {
	Select(ctx context.Context, req selector.Request, hooks selector.Hooks) (*selector.Selection, error)
}

// PracticeGenerationHandler runs practice_generation jobs through the
// adaptive selector.
type PracticeGenerationHandler struct {
	selector PracticeSelector
	logger   *slog.Logger
}

var _ Handler = (*PracticeGenerationHandler)(nil)

// NewPracticeGenerationHandler creates the handler.
func NewPracticeGenerationHandler(sel PracticeSelector, logger *slog.Logger) *PracticeGenerationHandler {
	if sel == nil {
		panic("selector cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PracticeGenerationHandler{
		selector: sel,
		logger:   logger.With(slog.String("component", "practice_generation_handler")),
	}
}

// Handle implements Handler.
func (h *PracticeGenerationHandler) Handle(ctx context.Context, run *Run) (domain.JobResult, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	params, ok := run.Job.Params.(*domain.PracticeGenerationParams)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected params %T for %s", domain.ErrInvalidJobType, run.Job.Params, run.Job.Type)
	}

	jobID := run.Job.ID
	sel, err := h.selector.Select(ctx, selector.RequestFromParams(&jobID, params), selector.Hooks{
		Checkpoint: run.Checkpoint,
		Progress:   run.Progress,
	})
	if err != nil {
		return nil, err
	}

	if sel.GenerationErr != nil {
		log.WarnContext(ctx, "generation ended early, returning partial selection",
			"selected", len(sel.Items),
			"requested", sel.Requested,
			"error", sel.GenerationErr)
	}

	run.Progress(ctx, 95, "Finalizing")
	return sel.Result(), nil
}
