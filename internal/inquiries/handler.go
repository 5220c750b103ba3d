package inquiries

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

// Handler exposes inquiry endpoints.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	dispatcher events.Dispatcher
	staffOnly  func(http.Handler) http.Handler
}

// NewHandler constructs a Handler. staffOnly gates back-office routes.
func NewHandler(logger *slog.Logger, service *Service, dispatcher events.Dispatcher, staffOnly func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, dispatcher: dispatcher, staffOnly: staffOnly}
}

// MountRoutes registers inquiry routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/files", h.attachFile)
	r.Group(func(r chi.Router) {
		r.Use(h.staffOnly)
		r.Put("/{id}/parts", h.updateParts)
		r.Post("/{id}/review", h.review)
	})
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
	inq, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("create inquiry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Commit(w, http.StatusCreated, inq, func() {
		h.dispatcher.Dispatch(r.Context(), events.New(events.InquiryCreated, inq.ID, actor.UserID))
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
		items = []Inquiry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	inq, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inq)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inq, err := h.service.UpdateByCustomer(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inq)
}

func (h *Handler) updateParts(w http.ResponseWriter, r *http.Request) {
	var req UpdatePartsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inq, err := h.service.UpdateParts(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inq)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	inq, err := h.service.MarkReviewed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inq)
}

func (h *Handler) attachFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("file field is required"))
		return
	}
	defer file.Close()
	inq, err := h.service.AttachFile(r.Context(), actor, chi.URLParam(r, "id"), Upload{
		Name:        header.Filename,
		ContentType: httpx.PartContentType(header),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.logger.Error("attach inquiry file", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inq)
}
