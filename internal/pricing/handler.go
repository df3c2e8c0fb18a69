package pricing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quoteflow/quoteflow/internal/observability"
	"github.com/quoteflow/quoteflow/internal/platform/httpx"
	"github.com/quoteflow/quoteflow/internal/shared"
)

// Handler exposes the stateless calculator and the active catalog.
type Handler struct {
	logger   *slog.Logger
	store    *CatalogStore
	reloader *Reloader
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler builds Handler instance. reloader may be nil.
func NewHandler(logger *slog.Logger, store *CatalogStore, reloader *Reloader, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, reloader: reloader, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/estimate", h.estimate)
	r.Get("/catalog", h.catalog)
	r.Post("/catalog/reload", h.reload)
}

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	var sel Selection
	if err := httpx.Bind(r, h.validate, &sel); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	est, err := Compute(h.store.Current(), sel)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	h.metrics.ObserveEstimate(string(sel.ServiceType))
	httpx.JSON(w, http.StatusOK, est)
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.Current())
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	if !actor.IsAdmin() {
		httpx.Fail(w, h.logger, shared.ErrForbidden)
		return
	}
	if h.reloader == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "catalog reload is not configured")
		return
	}
	cat, err := h.reloader.Reload(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"version": cat.Version})
}
