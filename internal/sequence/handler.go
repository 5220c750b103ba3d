package sequence

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fabline/fabline/internal/platform/httpx"
)

// Handler exposes counter administration.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes. Callers wrap the router with the admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{entity}/preview", h.preview)
	r.Put("/{entity}", h.configure)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	counters, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list sequences", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": counters})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	entity := Entity(chi.URLParam(r, "entity"))
	next, err := h.service.Preview(r.Context(), entity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"entity": string(entity), "next": next})
}

func (h *Handler) configure(w http.ResponseWriter, r *http.Request) {
	var req Settings
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	counter, err := h.service.Configure(r.Context(), Entity(chi.URLParam(r, "entity")), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, counter)
}
