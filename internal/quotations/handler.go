package quotations

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/events"
	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/shared"
)

// Handler exposes quotation endpoints.
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

// MountRoutes registers quotation routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/document", h.download)
	r.Post("/{id}/accept", h.accept)
	r.Post("/{id}/reject", h.reject)
	r.Group(func(r chi.Router) {
		r.Use(h.staffOnly)
		r.Post("/", h.create)
		r.Post("/{id}/document", h.upload)
		r.Post("/{id}/document/render", h.render)
		r.Post("/{id}/send", h.send)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create quotation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
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
		InquiryID:  q.Get("inquiry_id"),
		Status:     Status(q.Get("status")),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Quotation{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	q, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFromContext(r.Context())
	q, err := h.service.Send(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Commit(w, http.StatusOK, q, func() {
		h.dispatcher.Dispatch(r.Context(), events.New(events.QuotationSent, q.ID, actor.UserID))
	})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	q, err := h.service.Accept(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Commit(w, http.StatusOK, q, func() {
		h.dispatcher.Dispatch(r.Context(), events.New(events.QuotationAccepted, q.ID, actor.UserID))
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req RejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Reject(r.Context(), actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxDocumentSize+1<<20)
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
	q, err := h.service.AttachDocument(r.Context(), chi.URLParam(r, "id"), Upload{
		Name:        header.Filename,
		ContentType: httpx.PartContentType(header),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.logger.Error("attach quotation document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.RenderDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("render quotation document", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	rc, doc, err := h.service.OpenDocument(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(doc.Name))
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream quotation document", slog.Any("error", err))
	}
}
