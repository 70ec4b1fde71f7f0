package generation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", generation.ErrTransientFailure, true},
		{"wrapped transient", fmt.Errorf("rate limited: %w", generation.ErrTransientFailure), true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"cancelled", context.Canceled, false},
		{"invalid request", generation.ErrInvalidRequest, false},
		{"blocked", generation.ErrContentBlocked, false},
		{"blocked wins over transient", fmt.Errorf("%w: %w", generation.ErrTransientFailure, generation.ErrContentBlocked), false},
		{"unclassified", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, generation.IsTransient(tt.err))
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := generation.Request{Subject: "Algebra", Difficulty: 5, Count: 3}
	assert.NoError(t, valid.Validate())

	for _, r := range []generation.Request{
		{Subject: " ", Difficulty: 5, Count: 1},
		{Subject: "Algebra", Difficulty: 5, Count: 0},
		{Subject: "Algebra", Difficulty: 11, Count: 1},
	} {
		assert.ErrorIs(t, r.Validate(), generation.ErrInvalidRequest)
	}
}
