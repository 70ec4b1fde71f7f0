package api

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/service"
	"github.com/phrazzld/scry-practice/internal/store"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockPracticeAssigner is a mock implementation of PracticeAssigner.
type MockPracticeAssigner struct {
	mock.Mock
}

func (m *MockPracticeAssigner) AssignAsync(
	ctx context.Context,
	ownerID uuid.UUID,
	params *domain.PracticeGenerationParams,
	webhookURL string,
) (*domain.Job, error) {
	args := m.Called(ctx, ownerID, params, webhookURL)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockPracticeAssigner) AssignSync(
	ctx context.Context,
	params *domain.PracticeGenerationParams,
) (*domain.PracticeGenerationResult, error) {
	args := m.Called(ctx, params)
	result, _ := args.Get(0).(*domain.PracticeGenerationResult)
	return result, args.Error(1)
}

// MockRatingUpdater is a mock implementation of RatingUpdater.
type MockRatingUpdater struct {
	mock.Mock
}

func (m *MockRatingUpdater) Complete(ctx context.Context, in service.CompletionInput) (*service.CompletionResult, error) {
	args := m.Called(ctx, in)
	result, _ := args.Get(0).(*service.CompletionResult)
	return result, args.Error(1)
}

// MockJobs is a mock implementation of JobReader and JobCanceller.
type MockJobs struct {
	mock.Mock
}

func (m *MockJobs) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id, ownerID)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *MockJobs) List(ctx context.Context, filter store.JobFilter) ([]*domain.Job, error) {
	args := m.Called(ctx, filter)
	jobs, _ := args.Get(0).([]*domain.Job)
	return jobs, args.Error(1)
}

func (m *MockJobs) Cancel(ctx context.Context, id, ownerID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id, ownerID)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func newTestJob(owner uuid.UUID) *domain.Job {
	job, err := domain.NewJob(owner, &domain.PracticeGenerationParams{
		LearnerID: owner,
		Subject:   "Algebra 2",
		NumItems:  5,
	}, "")
	if err != nil {
		panic(err)
	}
	return job
}
