package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	directory *users.Service
	mw        Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, directory *users.Service, mw Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		directory: directory,
		mw:        mw,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Authenticate)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("login", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("login", slog.String("user_id", sess.Principal.UserID), slog.String("role", string(sess.Principal.Role)))
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), BearerToken(r)); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	user, err := h.directory.Get(r.Context(), p.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
