package selector

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
)

// Progress percentages reserved around the selection steps. The caller
// owns everything above progressCeiling for finalization.
const (
	progressFloor   = 10
	progressCeiling = 90
)

// State is the running selection shared by the strategies of one chain.
type State struct {
	Request Request
	Rating  int
	Target  int

	selected      []domain.PracticeItem
	selectedIDs   map[uuid.UUID]struct{}
	hooks         Hooks
	lastPercent   int
	generationErr error
}

func newState(req Request, rating int, hooks Hooks) *State {
	return &State{
		Request:     req,
		Rating:      rating,
		Target:      domain.DifficultyForRating(rating),
		selectedIDs: make(map[uuid.UUID]struct{}, req.NumItems),
		hooks:       hooks,
	}
}

// Remaining returns how many items are still needed.
func (s *State) Remaining() int {
	return s.Request.NumItems - len(s.selected)
}

// SelectedIDs returns the ids chosen so far.
func (s *State) SelectedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.selected))
	for _, item := range s.selected {
		ids = append(ids, item.ID)
	}
	return ids
}

// SelectedQuestions returns the question text of every item chosen so far.
func (s *State) SelectedQuestions() []string {
	questions := make([]string, 0, len(s.selected))
	for _, item := range s.selected {
		questions = append(questions, item.Question)
	}
	return questions
}

// Add appends items until the request is full, skipping duplicates.
// It returns the number actually added.
func (s *State) Add(items []domain.PracticeItem) int {
	added := 0
	for _, item := range items {
		if s.Remaining() == 0 {
			break
		}
		if _, dup := s.selectedIDs[item.ID]; dup {
			continue
		}
		s.selectedIDs[item.ID] = struct{}{}
		s.selected = append(s.selected, item)
		added++
	}
	return added
}

// Checkpoint runs the caller's checkpoint hook, then checks ctx.
func (s *State) Checkpoint(ctx context.Context) error {
	if s.hooks.Checkpoint != nil {
		if err := s.hooks.Checkpoint(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// progress reports the fill ratio scaled into [progressFloor, progressCeiling].
func (s *State) progress(ctx context.Context, message string) {
	percent := progressFloor
	if s.Request.NumItems > 0 {
		percent += (progressCeiling - progressFloor) * len(s.selected) / s.Request.NumItems
	}
	if percent < s.lastPercent {
		percent = s.lastPercent
	}
	s.lastPercent = percent

	if s.hooks.Progress != nil {
		s.hooks.Progress(ctx, percent, message)
	}
}
