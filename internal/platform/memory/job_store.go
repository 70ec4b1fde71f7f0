package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/store"
)

// JobStore is a mutex-guarded map of jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job

	// TransitionHook, when set, runs before every transition under the store
	// lock. Returning an error aborts the transition with that error.
	TransitionHook func(id uuid.UUID, update domain.JobUpdate) error
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

var _ store.JobStore = (*JobStore)(nil)

// Create implements store.JobStore.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if job.Status != domain.JobStatusPending {
		return fmt.Errorf("%w: new jobs must be pending", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", store.ErrJobExists, job.ID)
	}
	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

// Get implements store.JobStore.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// Transition implements store.JobStore.
func (s *JobStore) Transition(
	ctx context.Context,
	id uuid.UUID,
	expectedFrom []domain.JobStatus,
	update domain.JobUpdate,
) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	if s.TransitionHook != nil {
		if err := s.TransitionHook(id, update); err != nil {
			return nil, err
		}
	}

	if !store.StatusIn(current.Status, expectedFrom) {
		return nil, fmt.Errorf("%w: job %s is %s, expected one of %v",
			domain.ErrInvalidTransition, id, current.Status, expectedFrom)
	}

	next, err := current.Apply(update, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.jobs[id] = next
	snapshot := *next
	return &snapshot, nil
}

// List implements store.JobStore.
func (s *JobStore) List(ctx context.Context, filter store.JobFilter) ([]*domain.Job, error) {
	s.mu.RLock()
	matched := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		snapshot := *job
		matched = append(matched, &snapshot)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = store.DefaultJobListLimit
	}
	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return []*domain.Job{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

// ListByStatus implements store.JobStore.
func (s *JobStore) ListByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	s.mu.RLock()
	matched := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.Status != status {
			continue
		}
		if olderThan > 0 && !job.UpdatedAt.Before(cutoff) {
			continue
		}
		snapshot := *job
		matched = append(matched, &snapshot)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}
