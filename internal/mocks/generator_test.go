package mocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerator(t *testing.T) {
	t.Parallel()

	t.Run("echo generator", func(t *testing.T) {
		t.Parallel()

		gen := mocks.NewEchoGenerator()
		items, err := gen.Generate(context.Background(), generation.Request{
			Subject: "Algebra", Difficulty: 3, Count: 4,
		})
		require.NoError(t, err)
		require.Len(t, items, 4)
		for _, item := range items {
			assert.Equal(t, domain.ItemSourceAIGenerated, item.Source)
			assert.True(t, item.Flagged)
			assert.Equal(t, 3, item.Difficulty)
		}
		assert.Equal(t, 1, gen.CallCount())
		assert.Equal(t, 4, gen.Requests()[0].Count)
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()

		want := errors.New("generation failed")
		gen := mocks.NewMockGeneratorWithError(want)
		_, err := gen.Generate(context.Background(), generation.Request{Subject: "Algebra", Difficulty: 3, Count: 1})
		assert.ErrorIs(t, err, want)
		assert.Equal(t, 1, gen.CallCount())
	})

	t.Run("custom function", func(t *testing.T) {
		t.Parallel()

		gen := &mocks.MockGenerator{
			GenerateFn: func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
				return nil, generation.ErrTransientFailure
			},
		}
		_, err := gen.Generate(context.Background(), generation.Request{})
		assert.True(t, generation.IsTransient(err))
	})
}
