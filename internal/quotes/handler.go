package quotes

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quoteflow/quoteflow/internal/platform/httpx"
	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/shared"
)

// IdempotencyHeader lets clients retry quote creation safely.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyModule = "quotes.create"

// Idempotency claims request keys.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string, actor uuid.UUID) error
	Delete(ctx context.Context, key, module string, actor uuid.UUID) error
}

// Handler exposes quote endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     Idempotency
	validate *validator.Validate
}

// NewHandler builds Handler instance. idem may be nil.
func NewHandler(logger *slog.Logger, service *Service, idem Idempotency) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, idem: idem, validate: validator.New()}
}

// MountRoutes registers quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/funnel", h.funnel)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.withQuote(h.show))
		r.Put("/selection", h.withQuote(h.updateSelection))
		r.Post("/submit", h.withQuote(h.submit))
		r.Post("/review", h.withQuote(h.review))
		r.Post("/accept", h.withQuote(h.accept))
		r.Post("/reject", h.withQuote(h.reject))
		r.Post("/convert", h.withQuote(h.convert))
		r.Get("/history", h.withQuote(h.history))
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var sel pricing.Selection
	if err := httpx.Bind(r, h.validate, &sel); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, idempotencyModule, actor.UserID); err != nil {
			httpx.Fail(w, h.logger, err)
			return
		}
	}
	q, err := h.service.CreateDraft(r.Context(), actor, sel)
	if err != nil {
		if key != "" && h.idem != nil {
			if derr := h.idem.Delete(context.WithoutCancel(r.Context()), key, idempotencyModule, actor.UserID); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	var items []Quote
	if actor.IsAdmin() {
		items, err = h.service.ListAll(r.Context(), actor)
	} else {
		items, err = h.service.ListMine(r.Context(), actor)
	}
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	page, perPage := shared.PageParams(r.URL.Query())
	data, meta := shared.Paginate(items, page, perPage)
	httpx.JSON(w, http.StatusOK, httpx.Page[Quote]{Data: data, Pagination: meta})
}

func (h *Handler) funnel(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.RequireActor(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	f, err := h.service.Funnel(r.Context(), actor)
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, f)
}

// withQuote resolves the actor and quote id shared by every /{id} route.
func (h *Handler) withQuote(fn func(http.ResponseWriter, *http.Request, shared.Actor, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		fn(w, r, actor, id)
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	httpx.JSON(w, status, v)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	q, err := h.service.Get(r.Context(), actor, id)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) updateSelection(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	var sel pricing.Selection
	if err := httpx.Bind(r, h.validate, &sel); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	q, err := h.service.UpdateSelection(r.Context(), actor, id, sel)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	q, err := h.service.Submit(r.Context(), actor, id)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	q, err := h.service.StartReview(r.Context(), actor, id)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	q, err := h.service.Accept(r.Context(), actor, id)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	var req RejectRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	q, err := h.service.Reject(r.Context(), actor, id, req.Reason)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	var req ConvertRequest
	if err := httpx.BindOptional(r, h.validate, &req); err != nil {
		httpx.Fail(w, h.logger, err)
		return
	}
	p, err := h.service.ConvertToProject(r.Context(), actor, id, req.Name)
	h.respond(w, http.StatusCreated, p, err)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, actor shared.Actor, id uuid.UUID) {
	items, err := h.service.History(r.Context(), actor, id)
	h.respond(w, http.StatusOK, map[string]any{"data": items}, err)
}
