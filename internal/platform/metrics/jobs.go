package metrics

import (
	"context"
	"sync"

	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/events"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Committed job transitions by job type and resulting status.",
		},
		[]string{"job_type", "status"},
	)

	generationCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_calls_total",
			Help:      "Generation attempts by outcome (success, transient, terminal).",
		},
		[]string{"outcome"},
	)

	practiceCompositions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "practice_results_total",
			Help:      "Practice results by composition and shortfall.",
		},
		[]string{"composition", "shortfall"},
	)

	queueCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_capacity",
			Help:      "Capacity of the job queue.",
		},
	)

	queueDepthOnce sync.Once
)

func init() {
	register(jobTransitions, generationCalls, practiceCompositions, queueCapacity)
}

// JobEventHandler counts every committed transition, and the practice
// result of every completed practice_generation job.
type JobEventHandler struct{}

var _ events.EventHandler = JobEventHandler{}

// HandleEvent implements events.EventHandler.
func (JobEventHandler) HandleEvent(ctx context.Context, event *events.JobTransitionEvent) error {
	jobTransitions.WithLabelValues(string(event.Job.Type), string(event.Job.Status)).Inc()
	if result, ok := event.Job.Result.(*domain.PracticeGenerationResult); ok {
		ObservePracticeResult(string(result.Composition), result.Shortfall)
	}
	return nil
}

// ObserveGeneration counts a generation attempt.
func ObserveGeneration(outcome string) {
	generationCalls.WithLabelValues(outcome).Inc()
}

// ObservePracticeResult counts a finished selection.
func ObservePracticeResult(composition string, shortfall bool) {
	s := "false"
	if shortfall {
		s = "true"
	}
	practiceCompositions.WithLabelValues(composition, s).Inc()
}

// RegisterQueueDepth exposes the job queue length and capacity. Only the
// first call has an effect.
func RegisterQueueDepth(depth func() int, capacity int) {
	queueDepthOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_queue_depth",
			Help:      "Job ids waiting for a worker.",
		}, func() float64 { return float64(depth()) }))
		queueCapacity.Set(float64(capacity))
	})
}
