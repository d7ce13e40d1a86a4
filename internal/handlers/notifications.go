package handlers

import (
	"errors"
	"net/http"

	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/middleware"
)

// NotificationsHandler exposes a user's stored notifications.
type NotificationsHandler struct {
	notifications db.NotificationCollection
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(notifications db.NotificationCollection) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// Register attaches the notification routes to a mux.
func (h *NotificationsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notifications", h.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.MarkRead)
}

// List returns the authenticated user's notifications, newest first.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	notifications, err := h.notifications.FindNotificationsByUser(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to load notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// MarkRead flags a notification as read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	err := h.notifications.MarkNotificationRead(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Notification not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update notification", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}
