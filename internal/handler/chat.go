package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bloodlink/internal/chat"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
)

// ChatGetter resolves a chat by id for access checks.
type ChatGetter interface {
	GetByID(ctx context.Context, id string) (*model.Chat, error)
}

// PartnerGetter resolves the other participant's profile for chat lists.
type PartnerGetter interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type ChatHandler struct {
	chatSvc *chat.Service
	chats   ChatGetter
	users   PartnerGetter
}

func NewChatHandler(chatSvc *chat.Service, chats ChatGetter, users PartnerGetter) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc, chats: chats, users: users}
}

type createChatRequest struct {
	UserID string `json:"user_id"`
}

// CreateChat is get-or-create: both sides calling it concurrently converge
// on the same chat because the id is derived from the pair.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("create chat lookup user=%s: %v", req.UserID, err)
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}

	c, err := h.chatSvc.GetOrCreate(r.Context(), viewerID, req.UserID)
	if err != nil {
		if errors.Is(err, chat.ErrSelfChat) {
			writeError(w, http.StatusBadRequest, "cannot create chat with yourself")
			return
		}
		logger.Errorf("create chat %s<->%s: %v", viewerID, req.UserID, err)
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetUserChats returns the viewer's chats, newest activity first, each
// enriched with the other participant's public profile.
func (h *ChatHandler) GetUserChats(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	chats, err := h.chatSvc.ListForUser(r.Context(), viewerID)
	if err != nil {
		logger.Errorf("list chats user=%s: %v", viewerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load chats")
		return
	}

	out := make([]model.ChatWithPartner, 0, len(chats))
	for _, c := range chats {
		entry := model.ChatWithPartner{Chat: c}
		for _, pid := range c.Participants {
			if pid == viewerID {
				continue
			}
			if partner, err := h.users.GetByID(r.Context(), pid); err == nil {
				pub := partner.ToPublic()
				entry.Partner = &pub
			}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": out})
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")
	c, err := h.chats.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		logger.Errorf("get chat %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	if !c.HasParticipant(viewerID) {
		writeError(w, http.StatusForbidden, "not a participant")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
