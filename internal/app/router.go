package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/quoteflow/quoteflow/internal/observability"
	"github.com/quoteflow/quoteflow/internal/platform/httpx"
	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/projects"
	"github.com/quoteflow/quoteflow/internal/quotes"
	"github.com/quoteflow/quoteflow/jobs"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Metrics         *observability.Metrics
	DB              Pinger
	PricingHandler  *pricing.Handler
	QuotesHandler   *quotes.Handler
	ProjectsHandler *projects.Handler
	JobsHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with quoteflow defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.DB, logger))
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if params.PricingHandler != nil {
			r.With(OptionalActorMiddleware(logger)).Route("/pricing", params.PricingHandler.MountRoutes)
		}
		r.Group(func(r chi.Router) {
			r.Use(ActorMiddleware(logger))
			if params.QuotesHandler != nil {
				r.Route("/quotes", params.QuotesHandler.MountRoutes)
			}
			if params.ProjectsHandler != nil {
				r.Route("/projects", params.ProjectsHandler.MountRoutes)
				r.Route("/invoices", params.ProjectsHandler.MountInvoiceRoutes)
			}
			if params.JobsHandler != nil {
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", r.URL.Path)
	})
	return r
}

func healthHandler(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				logger.Warn("health check", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
