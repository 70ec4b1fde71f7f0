package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestErrorHierarchy(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, ErrJobNotFound, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("failed to get job: %w", ErrJobNotFound), ErrNotFound)
	assert.ErrorIs(t, ErrJobExists, ErrDuplicate)
	assert.False(t, errors.Is(ErrJobExists, ErrNotFound))
	assert.False(t, errors.Is(ErrRatingConflict, ErrNotFound))
}

func TestStatusIn(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusIn(domain.JobStatusPending, nil))
	assert.True(t, StatusIn(domain.JobStatusPending, []domain.JobStatus{domain.JobStatusProcessing, domain.JobStatusPending}))
	assert.False(t, StatusIn(domain.JobStatusCompleted, []domain.JobStatus{domain.JobStatusPending}))
}
