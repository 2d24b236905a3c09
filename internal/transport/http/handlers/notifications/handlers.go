package notificationshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpieval/internal/domain/notifications"
	"kpieval/internal/transport/http/api"
	"kpieval/internal/transport/http/middleware"
	"kpieval/internal/transport/http/shared"
)

type Handler struct {
	Service *notifications.Service
}

func NewHandler(service *notifications.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/unread-count", h.handleUnreadCount)
		r.Post("/read-all", h.handleMarkAllRead)
		r.Patch("/{recipientID}/read", h.handleMarkRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, notifications.DefaultPageSize, notifications.MaxPageSize)
	items, total, err := h.Service.List(r.Context(), user.UserID, shared.ParseBool(r, "unread"), page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if items == nil {
		items = []notifications.Item{}
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	count, err := h.Service.UnreadCount(r.Context(), user.UserID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]int{"count": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	recipientID, ok := shared.PathID(w, r, "recipientID")
	if !ok {
		return
	}
	if err := h.Service.MarkRead(r.Context(), user.UserID, recipientID); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"status": "read"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	updated, err := h.Service.MarkAllRead(r.Context(), user.UserID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]int64{"updated": updated}, middleware.GetRequestID(r.Context()))
}
