package projects

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quoteflow/quoteflow/internal/platform/httpx"
	"github.com/quoteflow/quoteflow/internal/shared"
)

// Handler exposes project and invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Post("/{id}/status", h.transition)
	r.Get("/{id}/invoices", h.listInvoices)
	r.Post("/{id}/invoices", h.addInvoice)
	r.Get("/{id}/ledger", h.ledger)
}

// MountInvoiceRoutes registers invoice routes.
func (h *Handler) MountInvoiceRoutes(r chi.Router) {
	r.Post("/{id}/paid", h.setPaid)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	items, err := h.service.ListForUser(r.Context(), actor)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	page, perPage := shared.PageParams(r.URL.Query())
	data, meta := shared.Paginate(items, page, perPage)
	httpx.JSON(w, http.StatusOK, httpx.Page[Project]{Data: data, Pagination: meta})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	p, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req TransitionRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	p, err := h.service.Transition(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	h.logger.Info("project status changed",
		slog.String("project_id", p.ID.String()),
		slog.String("status", string(p.Status)),
		slog.String("actor", actor.UserID.String()))
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	items, err := h.service.Invoices(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) addInvoice(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req CreateInvoiceRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	inv, err := h.service.AddInvoice(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) setPaid(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var req SetPaidRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	inv, err := h.service.SetInvoicePaid(r.Context(), actor, id, req.Paid)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	l, err := h.service.Ledger(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}
