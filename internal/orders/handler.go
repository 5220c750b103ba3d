package orders

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/events"
	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/shared"
)

// Handler exposes order endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	dispatcher events.Dispatcher
	staffOnly  func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, dispatcher events.Dispatcher, staffOnly func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, dispatcher: dispatcher, staffOnly: staffOnly}
}

// MountRoutes registers order routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/deliver", h.deliver)
	r.Group(func(r chi.Router) {
		r.Use(h.staffOnly)
		r.Patch("/{id}/status", h.changeStatus)
		r.Put("/{id}/dispatch", h.recordDispatch)
	})
}

// MountCheckout registers the payment checkout route.
func (h *Handler) MountCheckout(r chi.Router) {
	r.Post("/checkout", h.checkout)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("create order", slog.String("quotation_id", req.QuotationID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Commit(w, http.StatusCreated, order, func() {
		h.dispatcher.Dispatch(r.Context(), events.New(events.OrderCreated, order.ID, actor.UserID))
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), actor, ListFilter{
		CustomerID: q.Get("customer_id"),
		Status:     Status(q.Get("status")),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Order{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	order, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFromContext(r.Context())
	var req StatusChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	change, err := h.service.ChangeStatus(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.commitChange(w, r, change, events.OrderStatusChanged, actor.UserID)
}

func (h *Handler) recordDispatch(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFromContext(r.Context())
	var req DispatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	change, err := h.service.RecordDispatch(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.commitChange(w, r, change, events.DispatchRecorded, actor.UserID)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	change, err := h.service.ConfirmDelivery(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.commitChange(w, r, change, events.DeliveryConfirmed, actor.UserID)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req CheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Checkout(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("open checkout", slog.String("quotation_id", req.QuotationID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

// commitChange responds with the order and fans out kind when something changed.
func (h *Handler) commitChange(w http.ResponseWriter, r *http.Request, change Change, kind events.Kind, actorID string) {
	httpx.Commit(w, http.StatusOK, change.Order, func() {
		if !change.Changed {
			return
		}
		evt := events.New(kind, change.Order.ID, actorID)
		evt.OldStatus = string(change.OldStatus)
		evt.NewStatus = string(change.Order.Status)
		h.dispatcher.Dispatch(r.Context(), evt)
	})
}
