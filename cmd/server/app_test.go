package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/config"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/mocks"
	"github.com/phrazzld/scry-practice/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "debug",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		LLM:      config.LLMConfig{GeminiAPIKey: "test-key", ModelName: "gemini-test"},
		Jobs: config.JobsConfig{
			WorkerCount:           2,
			QueueSize:             10,
			StoreTimeout:          time.Second,
			GenerationTimeout:     time.Second,
			GenerationMaxRetries:  1,
			GenerationBackoff:     time.Millisecond,
			GenerationBatchSize:   10,
			StuckJobAge:           time.Minute,
			StuckJobCheckInterval: time.Minute,
		},
		Webhook:   config.WebhookConfig{Timeout: time.Second, Concurrency: 1, QueueSize: 4},
		Practice:  config.PracticeConfig{SyncTimeout: 5 * time.Second},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 60, Burst: 10},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*application, *httptest.Server) {
	t.Helper()
	return newTestAppWithGenerator(t, cfg, mocks.NewEchoGenerator())
}

func newTestAppWithGenerator(t *testing.T, cfg *config.Config, gen generation.Generator) (*application, *httptest.Server) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApplication(context.Background(), cfg, log, gen)
	require.NoError(t, err)
	require.NoError(t, app.start())

	server := httptest.NewServer(app.setupRouter())
	t.Cleanup(func() {
		server.Close()
		app.stop()
		app.cleanup()
	})
	return app, server
}

func postJSON(t *testing.T, url string, body interface{}, header http.Header) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestApplication_AsyncAssignmentCompletes(t *testing.T) {
	_, server := newTestApp(t, testConfig())
	learner := uuid.New()

	resp := postJSON(t, server.URL+"/practice/assign/async", map[string]interface{}{
		"learner_id": learner,
		"subject":    "Algebra 2",
		"num_items":  3,
	}, nil)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	var accepted struct {
		JobID     uuid.UUID `json:"job_id"`
		Status    string    `json:"status"`
		StatusURL string    `json:"status_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.Equal(t, "pending", accepted.Status)

	var job struct {
		Status string `json:"status"`
		Result struct {
			GeneratedCount int  `json:"generated_count"`
			Shortfall      bool `json:"shortfall"`
		} `json:"result"`
	}
	require.Eventually(t, func() bool {
		r, err := http.Get(accepted.StatusURL + "?learner_id=" + learner.String())
		if err != nil {
			return false
		}
		defer func() { _ = r.Body.Close() }()
		if r.StatusCode != http.StatusOK {
			return false
		}
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 3, job.Result.GeneratedCount)
	assert.False(t, job.Result.Shortfall)
}

func TestApplication_HealthAndMetrics(t *testing.T) {
	_, server := newTestApp(t, testConfig())

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scry_job_queue_capacity")
}

func TestApplication_AuthEnabledRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "thisisasecretkeythatis32charslong!!"
	_, server := newTestApp(t, cfg)

	resp := postJSON(t, server.URL+"/practice/assign/async", map[string]interface{}{
		"learner_id": uuid.New(),
		"subject":    "Algebra 2",
		"num_items":  1,
	}, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	health, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	_ = health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestApplication_UnsupportedDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite"

	_, err := newApplication(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), mocks.NewEchoGenerator())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestApplication_StopDeliversWebhookForDrainedJob(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		events = append(events, r.Header.Get(notify.HeaderEvent))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer receiver.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	echo := mocks.NewEchoGenerator()
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
			once.Do(func() { close(started) })
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return echo.Generate(ctx, req)
		},
	}

	app, server := newTestAppWithGenerator(t, testConfig(), gen)

	resp := postJSON(t, server.URL+"/practice/assign/async", map[string]interface{}{
		"learner_id":  uuid.New(),
		"subject":     "Algebra 2",
		"num_items":   2,
		"webhook_url": receiver.URL + "/hook",
	}, nil)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("generation never started")
	}

	stopped := make(chan struct{})
	go func() {
		app.stop()
		close(stopped)
	}()

	isStopped := func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}
	assert.Never(t, isStopped, 100*time.Millisecond, 10*time.Millisecond, "stop waits for the running job")
	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"practice.assignment.completed"}, events)
}
