package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/mocks"
	"github.com/phrazzld/scry-practice/internal/platform/memory"
	"github.com/phrazzld/scry-practice/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParams(n int) *domain.PracticeGenerationParams {
	return &domain.PracticeGenerationParams{LearnerID: uuid.New(), Subject: "Algebra", NumItems: n}
}

func createJob(n int, jobs *memory.JobStore) func(ctx context.Context) (*domain.Job, error) {
	return func(ctx context.Context) (*domain.Job, error) {
		job, err := domain.NewJob(uuid.New(), newParams(n), "")
		if err != nil {
			return nil, err
		}
		return job, jobs.Create(ctx, job)
	}
}

func newTestDispatcher(t *testing.T, jobs *memory.JobStore, config DispatcherConfig) *Dispatcher {
	t.Helper()

	d := NewDispatcher(jobs, config, setupTestLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func practiceHandler(gen generation.Generator, items ...domain.PracticeItem) Handler {
	sel := selector.NewSelector(
		memory.NewSkillRatingStore(),
		memory.NewAuditStore(),
		selector.DefaultChain(memory.NewItemBank(items...), gen, 10),
		setupTestLogger(),
	)
	return NewPracticeGenerationHandler(sel, setupTestLogger())
}

func waitForStatus(t *testing.T, jobs *memory.JobStore, id uuid.UUID, want domain.JobStatus) *domain.Job {
	t.Helper()

	var job *domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = jobs.Get(context.Background(), id)
		return err == nil && job.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job never reached %s", want)
	return job
}

// transitionLog records every update the store accepts, in order.
type transitionLog struct {
	mu      sync.Mutex
	updates []domain.JobUpdate
}

func (l *transitionLog) hook(id uuid.UUID, update domain.JobUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, update)
	return nil
}

func TestDispatcher_CompletesJob(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())
	gen := mocks.NewEchoGenerator()
	d.RegisterHandler(domain.JobTypePracticeGeneration, practiceHandler(gen))
	require.NoError(t, d.Start())

	job, err := d.Submit(context.Background(), createJob(5, jobs))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)

	done := waitForStatus(t, jobs, job.ID, domain.JobStatusCompleted)
	assert.Equal(t, 100, done.ProgressPercent)
	assert.Empty(t, done.ErrorMessage)

	result, ok := done.Result.(*domain.PracticeGenerationResult)
	require.True(t, ok)
	assert.Len(t, result.Items, 5)
	assert.Equal(t, domain.CompositionAllGenerated, result.Composition)
	for _, item := range result.Items {
		assert.True(t, item.Flagged)
	}
}

func TestDispatcher_ProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	log := &transitionLog{}
	jobs.TransitionHook = log.hook

	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())
	d.RegisterHandler(domain.JobTypePracticeGeneration, practiceHandler(mocks.NewEchoGenerator(),
		domain.PracticeItem{
			ID: uuid.New(), Subject: "Algebra", Question: "2+2?", Answer: "4",
			Difficulty: 5, Source: domain.ItemSourceBank,
		}))
	require.NoError(t, d.Start())

	job, err := d.Submit(context.Background(), createJob(3, jobs))
	require.NoError(t, err)
	waitForStatus(t, jobs, job.ID, domain.JobStatusCompleted)

	log.mu.Lock()
	defer log.mu.Unlock()

	require.NotEmpty(t, log.updates)
	lastRank, lastPercent := 0, 0
	for _, u := range log.updates {
		assert.GreaterOrEqual(t, u.To.Rank(), lastRank)
		lastRank = u.To.Rank()
		if u.ProgressPercent != nil {
			assert.GreaterOrEqual(t, *u.ProgressPercent, lastPercent)
			lastPercent = *u.ProgressPercent
		}
	}
	assert.Equal(t, domain.JobStatusCompleted, log.updates[len(log.updates)-1].To)
}

func TestDispatcher_QueueFull(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	config := DefaultDispatcherConfig()
	config.QueueSize = 1
	d := newTestDispatcher(t, jobs, config)

	_, err := d.Submit(context.Background(), createJob(1, jobs))
	require.NoError(t, err)

	created := false
	_, err = d.Submit(context.Background(), func(ctx context.Context) (*domain.Job, error) {
		created = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, created, "no job is created when the queue is full")
}

func TestDispatcher_CreateFailureReleasesSlot(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	config := DefaultDispatcherConfig()
	config.QueueSize = 1
	d := newTestDispatcher(t, jobs, config)

	boom := errors.New("insert failed")
	_, err := d.Submit(context.Background(), func(ctx context.Context) (*domain.Job, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = d.Submit(context.Background(), createJob(1, jobs))
	assert.NoError(t, err)
}

func TestDispatcher_CancelBeforePickup(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())

	called := make(chan struct{}, 1)
	d.RegisterHandler(domain.JobTypePracticeGeneration, HandlerFunc(func(ctx context.Context, run *Run) (domain.JobResult, error) {
		called <- struct{}{}
		return nil, errors.New("must not run")
	}))

	job, err := d.Submit(context.Background(), createJob(2, jobs))
	require.NoError(t, err)

	cancelled, err := d.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.Result)

	// The queued id is consumed without running the handler
	require.NoError(t, d.Start())
	require.Eventually(t, func() bool { return d.queue.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Stop(context.Background()))

	select {
	case <-called:
		t.Fatal("handler ran for a cancelled job")
	default:
	}

	final, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, final.Status)
}

func TestDispatcher_CancelMidRun(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())

	started := make(chan struct{})
	var once sync.Once
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	d.RegisterHandler(domain.JobTypePracticeGeneration, practiceHandler(gen))
	require.NoError(t, d.Start())

	job, err := d.Submit(context.Background(), createJob(5, jobs))
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}

	snapshot, err := d.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, snapshot.Status, "running job is finalized by its worker")

	final := waitForStatus(t, jobs, job.ID, domain.JobStatusCancelled)
	assert.Nil(t, final.Result)
	assert.Empty(t, final.ErrorMessage)
	assert.Equal(t, 1, gen.CallCount(), "no synthesis after cancellation")
}

func TestDispatcher_CancelOrphanedProcessingJob(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())

	job, err := createJob(1, jobs)(context.Background())
	require.NoError(t, err)
	_, err = jobs.Transition(context.Background(), job.ID, nil, domain.Progress(10, "working"))
	require.NoError(t, err)

	cancelled, err := d.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)
}

func TestDispatcher_CancelTerminalJob(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())

	job, err := createJob(1, jobs)(context.Background())
	require.NoError(t, err)
	_, err = d.Cancel(context.Background(), job.ID)
	require.NoError(t, err)

	_, err = d.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = d.Cancel(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestDispatcher_HandlerFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler Handler
		wantMsg string
	}{
		{
			name: "terminal generation error",
			handler: practiceHandler(mocks.NewMockGeneratorWithError(
				generation.ErrContentBlocked)),
			wantMsg: "content blocked",
		},
		{
			name: "panic",
			handler: HandlerFunc(func(ctx context.Context, run *Run) (domain.JobResult, error) {
				panic("boom")
			}),
			wantMsg: "panicked",
		},
		{
			name: "nil result",
			handler: HandlerFunc(func(ctx context.Context, run *Run) (domain.JobResult, error) {
				return nil, nil
			}),
			wantMsg: "no result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			jobs := memory.NewJobStore()
			d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())
			d.RegisterHandler(domain.JobTypePracticeGeneration, tt.handler)
			require.NoError(t, d.Start())

			job, err := d.Submit(context.Background(), createJob(2, jobs))
			require.NoError(t, err)

			failed := waitForStatus(t, jobs, job.ID, domain.JobStatusFailed)
			assert.Contains(t, failed.ErrorMessage, tt.wantMsg)
			assert.Nil(t, failed.Result)
		})
	}
}

func TestDispatcher_TransientGenerationFailureCompletesWithShortfall(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())
	d.RegisterHandler(domain.JobTypePracticeGeneration,
		practiceHandler(mocks.NewMockGeneratorWithError(generation.ErrTransientFailure)))
	require.NoError(t, d.Start())

	job, err := d.Submit(context.Background(), createJob(3, jobs))
	require.NoError(t, err)

	done := waitForStatus(t, jobs, job.ID, domain.JobStatusCompleted)
	result := done.Result.(*domain.PracticeGenerationResult)
	assert.True(t, result.Shortfall)
	assert.Equal(t, 3, result.ShortfallCount)
	assert.Equal(t, domain.CompositionEmpty, result.Composition)
}

func TestDispatcher_Recover(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	ctx := context.Background()

	pending, err := createJob(2, jobs)(ctx)
	require.NoError(t, err)
	interrupted, err := createJob(2, jobs)(ctx)
	require.NoError(t, err)
	_, err = jobs.Transition(ctx, interrupted.ID, nil, domain.Progress(40, "halfway"))
	require.NoError(t, err)

	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())
	d.RegisterHandler(domain.JobTypePracticeGeneration, practiceHandler(mocks.NewEchoGenerator()))
	require.NoError(t, d.Start())

	waitForStatus(t, jobs, pending.ID, domain.JobStatusCompleted)
	failed := waitForStatus(t, jobs, interrupted.ID, domain.JobStatusFailed)
	assert.Equal(t, msgInterrupted, failed.ErrorMessage)
	assert.Equal(t, 40, failed.ProgressPercent)
}

func TestDispatcher_FailStuckJobs(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	ctx := context.Background()

	stuck, err := createJob(1, jobs)(ctx)
	require.NoError(t, err)
	_, err = jobs.Transition(ctx, stuck.ID, nil, domain.Progress(10, "working"))
	require.NoError(t, err)

	config := DefaultDispatcherConfig()
	config.StuckJobAge = time.Millisecond
	d := newTestDispatcher(t, jobs, config)

	time.Sleep(5 * time.Millisecond)
	d.failStuckJobs(ctx)

	job, err := jobs.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, msgStuck, job.ErrorMessage)
}

func TestDispatcher_StartTwice(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, memory.NewJobStore(), DefaultDispatcherConfig())
	require.NoError(t, d.Start())
	assert.Error(t, d.Start())
}

func TestDispatcher_StopIdleReturnsPromptly(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, memory.NewJobStore(), DefaultDispatcherConfig())
	require.NoError(t, d.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, d.Stop(ctx))
	assert.Less(t, time.Since(start), time.Second)

	// Stop is idempotent
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_StopLeavesQueuedJobsPending(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	config := DefaultDispatcherConfig()
	config.WorkerCount = 1
	d := newTestDispatcher(t, jobs, config)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	d.RegisterHandler(domain.JobTypePracticeGeneration, HandlerFunc(func(ctx context.Context, run *Run) (domain.JobResult, error) {
		once.Do(func() { close(started) })
		<-release
		return domain.NewPracticeGenerationResult(nil, 2, domain.DefaultSkillRating, 5), nil
	}))
	require.NoError(t, d.Start())

	first, err := d.Submit(context.Background(), createJob(2, jobs))
	require.NoError(t, err)
	<-started

	var queued []*domain.Job
	for i := 0; i < 2; i++ {
		job, err := d.Submit(context.Background(), createJob(2, jobs))
		require.NoError(t, err)
		queued = append(queued, job)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- d.Stop(context.Background()) }()
	require.Eventually(t, d.stopping, time.Second, time.Millisecond)
	close(release)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	done, err := jobs.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status, "the running job finishes")

	for _, job := range queued {
		got, err := jobs.Get(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusPending, got.Status, "queued jobs wait for recovery")
	}
}

func TestDispatcher_RecoverRequeuesOverflow(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	ctx := context.Background()

	var pending []*domain.Job
	for i := 0; i < 5; i++ {
		job, err := createJob(1, jobs)(ctx)
		require.NoError(t, err)
		pending = append(pending, job)
	}

	config := DefaultDispatcherConfig()
	config.QueueSize = 2
	config.WorkerCount = 1
	d := newTestDispatcher(t, jobs, config)
	d.RegisterHandler(domain.JobTypePracticeGeneration, practiceHandler(mocks.NewEchoGenerator()))
	require.NoError(t, d.Start())

	for _, job := range pending {
		waitForStatus(t, jobs, job.ID, domain.JobStatusCompleted)
	}
}

func TestDispatcher_RecoverOverflowStopsWithDispatcher(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := createJob(1, jobs)(ctx)
		require.NoError(t, err)
	}

	config := DefaultDispatcherConfig()
	config.QueueSize = 1
	d := newTestDispatcher(t, jobs, config)

	// No workers are started, so the overflow never fits
	require.NoError(t, d.Recover(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(stopCtx))

	left, err := jobs.ListByStatus(ctx, domain.JobStatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, left, 4, "unqueued jobs stay pending for the next recovery")
}

func TestDispatcher_CancelRefusedOnceOutcomeSettled(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	d := newTestDispatcher(t, jobs, DefaultDispatcherConfig())
	ctx := context.Background()

	job, err := createJob(1, jobs)(ctx)
	require.NoError(t, err)
	_, err = jobs.Transition(ctx, job.ID, nil, domain.Progress(90, "finishing"))
	require.NoError(t, err)

	state := &runState{cancelCtx: func() {}}
	assert.False(t, state.settle(), "no cancellation requested yet")
	d.mu.Lock()
	d.running[job.ID] = state
	d.mu.Unlock()

	_, err = d.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.False(t, state.cancelled.Load())

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status, "the worker records the outcome")
}

func TestRunState_CancelBeforeSettle(t *testing.T) {
	t.Parallel()

	ctxCancelled := false
	state := &runState{cancelCtx: func() { ctxCancelled = true }}

	assert.True(t, state.requestCancel())
	assert.True(t, ctxCancelled)
	assert.True(t, state.settle(), "settle observes the earlier cancel")
	assert.False(t, state.requestCancel())
}
