package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
)

// NotificationReader lists and updates a user's stored notifications.
type NotificationReader interface {
	ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type NotificationHandler struct {
	store NotificationReader
}

func NewNotificationHandler(store NotificationReader) *NotificationHandler {
	return &NotificationHandler{store: store}
}

func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	list, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Errorf("list notifications user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.store.MarkRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		logger.Errorf("mark notification read user=%s id=%s: %v", userID, id, err)
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
