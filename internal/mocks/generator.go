package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
)

// MockGenerator implements generation.Generator for testing
type MockGenerator struct {
	// GenerateFn allows test cases to mock the Generate behavior
	GenerateFn func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error)

	// Default response values
	Items []domain.PracticeItem
	Err   error

	// Call tracking for verification
	GenerateCalls struct {
		// mu protects the call tracking state for concurrent test cases
		mu sync.Mutex

		// Count tracks how many times Generate was called
		Count int

		// Requests contains all requests passed to Generate calls
		Requests []generation.Request
	}
}

var _ generation.Generator = (*MockGenerator)(nil)

// Generate implements the generation.Generator interface
func (m *MockGenerator) Generate(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
	m.GenerateCalls.mu.Lock()
	m.GenerateCalls.Count++
	m.GenerateCalls.Requests = append(m.GenerateCalls.Requests, req)
	m.GenerateCalls.mu.Unlock()

	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}

	return m.Items, m.Err
}

// CallCount returns the number of Generate calls so far.
func (m *MockGenerator) CallCount() int {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	return m.GenerateCalls.Count
}

// Requests returns a copy of the recorded requests.
func (m *MockGenerator) Requests() []generation.Request {
	m.GenerateCalls.mu.Lock()
	defer m.GenerateCalls.mu.Unlock()
	return append([]generation.Request(nil), m.GenerateCalls.Requests...)
}

// NewMockGeneratorWithError creates a MockGenerator that returns the specified error
func NewMockGeneratorWithError(err error) *MockGenerator {
	return &MockGenerator{
		Err: err,
	}
}

// NewEchoGenerator creates a MockGenerator that synthesizes exactly
// req.Count valid items at the requested difficulty.
func NewEchoGenerator() *MockGenerator {
	return &MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
			if err := req.Validate(); err != nil {
				return nil, err
			}
			items := make([]domain.PracticeItem, 0, req.Count)
			for i := 0; i < req.Count; i++ {
				item, err := domain.NewGeneratedItem(
					req.Subject,
					req.Topic,
					fmt.Sprintf("Generated %s question %d", req.Subject, i+1),
					fmt.Sprintf("answer %d", i+1),
					nil,
					req.Tags,
					req.Difficulty,
				)
				if err != nil {
					return nil, err
				}
				items = append(items, *item)
			}
			return items, nil
		},
	}
}
