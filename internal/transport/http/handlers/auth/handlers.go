package authhandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kpieval/internal/domain/auth"
	"kpieval/internal/transport/http/api"
	"kpieval/internal/transport/http/middleware"
	"kpieval/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{Service: service}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPublic mounts routes that work without a token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.HandleMe)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Service.Login(r.Context(), strings.TrimSpace(payload.Email), payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", middleware.GetRequestID(r.Context()))
			return
		}
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}
