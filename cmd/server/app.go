package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-practice/internal/api"
	"github.com/phrazzld/scry-practice/internal/config"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/events"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/phrazzld/scry-practice/internal/notify"
	"github.com/phrazzld/scry-practice/internal/platform/gemini"
	"github.com/phrazzld/scry-practice/internal/platform/memory"
	"github.com/phrazzld/scry-practice/internal/platform/metrics"
	"github.com/phrazzld/scry-practice/internal/platform/postgres"
	"github.com/phrazzld/scry-practice/internal/platform/ratelimit"
	"github.com/phrazzld/scry-practice/internal/selector"
	"github.com/phrazzld/scry-practice/internal/service"
	"github.com/phrazzld/scry-practice/internal/store"
	"github.com/phrazzld/scry-practice/internal/task"
)

// stores groups the persistence implementations selected by the database driver.
type stores struct {
	jobs    store.JobStore
	ratings store.SkillRatingStore
	bank    store.ItemBank
	audits  store.AuditStore
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Optional infrastructure
	db    *sql.DB
	redis *ratelimit.RedisClient

	stores stores

	// Services
	jobService      *service.JobService
	practiceService *service.PracticeService
	ratingService   *service.RatingService

	// Background processing
	dispatcher *task.Dispatcher
	webhooks   *notify.WebhookDispatcher
	hub        *notify.Hub
	limiter    ratelimit.Limiter
}

// newApplication creates a new application instance with all dependencies initialized.
// When generator is nil a Gemini generator is built from the LLM configuration.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	generator generation.Generator,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	if err := app.setupStores(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	if generator == nil {
		gen, err := gemini.NewGeminiGenerator(ctx, logger.With("component", "llm_generator"), cfg.LLM)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
		}
		generator = gen
		logger.Info("LLM generator initialized", slog.String("model", cfg.LLM.ModelName))
	}
	generator = generation.NewRetryingGenerator(generator, generation.RetryPolicy{
		MaxRetries:  cfg.Jobs.GenerationMaxRetries,
		Backoff:     cfg.Jobs.GenerationBackoff,
		CallTimeout: cfg.Jobs.GenerationTimeout,
		Observe:     metrics.ObserveGeneration,
	}, logger)

	sel := selector.NewSelector(
		app.stores.ratings,
		app.stores.audits,
		selector.DefaultChain(app.stores.bank, generator, cfg.Jobs.GenerationBatchSize),
		logger,
	)

	// Event system: every committed transition reaches the hub and metrics.
	emitter := events.NewInMemoryEventEmitter(logger)
	app.jobService = service.NewJobService(app.stores.jobs, emitter, cfg.Jobs.StoreTimeout, logger)

	app.webhooks = notify.NewWebhookDispatcher(
		&http.Client{Timeout: cfg.Webhook.Timeout},
		notify.WebhookConfig{
			Timeout:     cfg.Webhook.Timeout,
			Concurrency: cfg.Webhook.Concurrency,
			QueueSize:   cfg.Webhook.QueueSize,
			Observe:     metrics.ObserveWebhook,
		},
		logger,
	)
	registry := notify.NewRegistry(notify.DefaultSubscriberBuffer, logger)
	app.hub = notify.NewHub(app.jobService, registry, app.webhooks, logger)
	emitter.RegisterHandler(app.hub)
	emitter.RegisterHandler(metrics.JobEventHandler{})

	app.dispatcher = task.NewDispatcher(app.jobService, task.DispatcherConfig{
		WorkerCount:           cfg.Jobs.WorkerCount,
		QueueSize:             cfg.Jobs.QueueSize,
		StuckJobAge:           cfg.Jobs.StuckJobAge,
		StuckJobCheckInterval: cfg.Jobs.StuckJobCheckInterval,
	}, logger)
	app.dispatcher.RegisterHandler(domain.JobTypePracticeGeneration, task.NewPracticeGenerationHandler(sel, logger))

	app.practiceService = service.NewPracticeService(
		app.jobService,
		app.dispatcher,
		sel,
		cfg.Practice.SyncTimeout,
		logger,
	)
	app.ratingService = service.NewRatingService(app.stores.ratings, logger)

	if err := app.setupRateLimiter(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	metrics.MustRegister()
	metrics.RegisterQueueDepth(app.dispatcher.Queue().Len, app.dispatcher.Queue().Cap())

	logger.Info("application initialized successfully",
		slog.Int("worker_count", cfg.Jobs.WorkerCount),
		slog.Int("queue_size", cfg.Jobs.QueueSize))
	return app, nil
}

// setupStores selects the persistence layer. The postgres driver applies
// pending migrations before use.
func (app *application) setupStores(ctx context.Context) error {
	switch app.config.Database.Driver {
	case config.DriverMemory:
		app.stores = stores{
			jobs:    memory.NewJobStore(),
			ratings: memory.NewSkillRatingStore(),
			bank:    memory.NewItemBank(),
			audits:  memory.NewAuditStore(),
		}
		app.logger.Warn("using in-memory storage; data is lost on restart")
		return nil

	case config.DriverPostgres:
		db, err := setupAppDatabase(ctx, app.config.Database, app.logger)
		if err != nil {
			return err
		}
		app.db = db

		if err := postgres.Migrate(ctx, db, app.logger, "up"); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}

		app.stores = stores{
			jobs:    postgres.NewPostgresJobStore(db, app.logger),
			ratings: postgres.NewPostgresSkillRatingStore(db, app.logger),
			bank:    postgres.NewPostgresItemBank(db, app.logger),
			audits:  postgres.NewPostgresAuditStore(db, app.logger),
		}
		return nil

	default:
		return fmt.Errorf("unsupported database driver %q", app.config.Database.Driver)
	}
}

// setupRateLimiter picks the Redis limiter when Redis is configured and the
// in-process limiter otherwise. A zero rate disables limiting.
func (app *application) setupRateLimiter(ctx context.Context) error {
	rl := app.config.RateLimit
	if rl.RequestsPerMinute == 0 {
		app.logger.Info("rate limiting disabled")
		return nil
	}

	if app.config.Redis.URL == "" {
		app.limiter = ratelimit.NewLocalLimiter(rl.RequestsPerMinute, rl.Burst)
		app.logger.Info("using in-process rate limiter", slog.Int("requests_per_minute", rl.RequestsPerMinute))
		return nil
	}

	client, err := ratelimit.NewRedisClient(ctx, app.config.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	app.limiter = ratelimit.NewRedisLimiter(client, rl.RequestsPerMinute, time.Minute)
	app.logger.Info("using redis rate limiter", slog.Int("requests_per_minute", rl.RequestsPerMinute))
	return nil
}

// healthChecks lists the dependencies checked by GET /health.
func (app *application) healthChecks() map[string]api.Pinger {
	checks := make(map[string]api.Pinger)
	if app.db != nil {
		checks["database"] = api.PingerFunc(app.db.PingContext)
	}
	if app.redis != nil {
		checks["redis"] = app.redis
	}
	return checks
}

// start launches the background workers. Unfinished jobs from a previous
// run are recovered before the workers start.
func (app *application) start() error {
	app.webhooks.Start()
	if err := app.dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.start(); err != nil {
		return err
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// stop drains the dispatcher, then the webhook queue. Each gets its own
// shutdown budget so that webhooks for jobs finished during the drain are
// still delivered.
func (app *application) stop() {
	var errs []error
	if app.dispatcher != nil {
		errs = append(errs, app.stopWithin(app.dispatcher.Stop))
	}
	if app.webhooks != nil {
		errs = append(errs, app.stopWithin(app.webhooks.Stop))
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error("background workers did not stop cleanly", slog.Any("error", err))
	}
}

func (app *application) stopWithin(stop func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()
	return stop(ctx)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis connection", slog.Any("error", err))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.Any("error", err))
		}
	}

	app.logger.Info("application shutdown completed")
}
