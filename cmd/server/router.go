package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/scry-practice/internal/api"
	apiMiddleware "github.com/phrazzld/scry-practice/internal/api/middleware"
	"github.com/phrazzld/scry-practice/internal/platform/metrics"
)

// rateLimitAssignAsync is the rate-limit action name of async submissions.
const rateLimitAssignAsync = "assign_async"

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(apiMiddleware.Metrics)

	practiceHandler := api.NewPracticeHandler(
		app.practiceService,
		app.ratingService,
		app.config.Server.PublicBaseURL,
		app.logger,
	)
	jobHandler := api.NewJobHandler(app.jobService, app.practiceService, app.logger)
	wsHandler := api.NewWebSocketHandler(app.jobService, app.hub, app.logger)
	healthHandler := api.NewHealthHandler(app.healthChecks(), app.logger)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if app.config.Auth.Enabled() {
			r.Use(apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret, app.logger).Authenticate)
		}

		r.Route("/practice", func(r chi.Router) {
			assignAsync := http.HandlerFunc(practiceHandler.AssignAsync)
			if app.limiter != nil {
				r.With(apiMiddleware.RateLimit(app.limiter, rateLimitAssignAsync)).Post("/assign/async", assignAsync)
			} else {
				r.Post("/assign/async", assignAsync)
			}
			r.Post("/assign", practiceHandler.AssignSync)
			r.Post("/complete", practiceHandler.Complete)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", jobHandler.ListJobs)
			r.Get("/{job_id}", jobHandler.GetJob)
			r.Get("/{job_id}/ws", wsHandler.Stream)
			r.Post("/{job_id}/cancel", jobHandler.CancelJob)
		})
	})

	return r
}
