package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bloodlink/internal/chat"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
	"github.com/bloodlink/internal/ws"
)

// MessageHandler is the REST path for messaging. Clients on a live socket
// normally send through the hub instead; both paths converge on the same
// chat service, so either way everyone receives the refreshed full list.
type MessageHandler struct {
	chatSvc *chat.Service
	chats   ChatGetter
	hub     *ws.Hub
}

func NewMessageHandler(chatSvc *chat.Service, chats ChatGetter, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{chatSvc: chatSvc, chats: chats, hub: hub}
}

func (h *MessageHandler) authorizeChat(w http.ResponseWriter, r *http.Request) *model.Chat {
	viewerID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	c, err := h.chats.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return nil
		}
		logger.Errorf("get chat %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return nil
	}
	if !c.HasParticipant(viewerID) {
		writeError(w, http.StatusForbidden, "not a participant")
		return nil
	}
	return c
}

func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	c := h.authorizeChat(w, r)
	if c == nil {
		return
	}
	msgs, err := h.chatSvc.Messages(r.Context(), c.ID)
	if err != nil {
		logger.Errorf("list messages chat=%s: %v", c.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": c.ID, "messages": msgs})
}

type sendMessageRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	c := h.authorizeChat(w, r)
	if c == nil {
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" && req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "message is empty")
		return
	}

	senderID := middleware.GetUserID(r.Context())
	m, err := h.chatSvc.Send(r.Context(), c.ID, senderID, req.Text, req.ImageURL)
	if err != nil {
		logger.Errorf("send message chat=%s: %v", c.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	if h.hub != nil {
		h.hub.BroadcastMessages(r.Context(), c)
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MessageHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	c := h.authorizeChat(w, r)
	if c == nil {
		return
	}
	messageID := chi.URLParam(r, "messageId")
	if err := h.chatSvc.MarkSeen(r.Context(), c.ID, messageID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		logger.Errorf("mark seen chat=%s msg=%s: %v", c.ID, messageID, err)
		writeError(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	if h.hub != nil {
		h.hub.BroadcastMessages(r.Context(), c)
	}
	w.WriteHeader(http.StatusNoContent)
}
