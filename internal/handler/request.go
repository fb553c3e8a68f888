package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bloodlink/internal/chat"
	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/push"
	"github.com/bloodlink/internal/repository"
	"github.com/bloodlink/internal/request"
	"github.com/bloodlink/internal/ws"
)

// RequestUserStore is the user access the request handler needs: the
// requester profile plus the recipient set for broadcast fan-out.
type RequestUserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByBloodGroup(ctx context.Context, bloodGroup, excludeID string) ([]string, error)
}

// NotificationStore persists in-app notifications alongside push delivery.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

type RequestHandler struct {
	svc           *request.Service
	chatSvc       *chat.Service
	users         RequestUserStore
	notifications NotificationStore
	hub           *ws.Hub
	pushClient    *push.Client
}

func NewRequestHandler(svc *request.Service, chatSvc *chat.Service, users RequestUserStore, notifications NotificationStore, hub *ws.Hub, pushClient *push.Client) *RequestHandler {
	return &RequestHandler{
		svc:           svc,
		chatSvc:       chatSvc,
		users:         users,
		notifications: notifications,
		hub:           hub,
		pushClient:    pushClient,
	}
}

type createRequestRequest struct {
	BloodGroup string  `json:"blood_group"`
	Urgency    string  `json:"urgency"`
	Hospital   string  `json:"hospital"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Notes      string  `json:"notes"`
	SentTo     string  `json:"sent_to"`
}

func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	var req createRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidBloodGroup(req.BloodGroup) {
		writeError(w, http.StatusBadRequest, "invalid blood group")
		return
	}
	urgency := model.Urgency(req.Urgency)
	if req.Urgency == "" {
		urgency = model.UrgencyMedium
	} else if !model.ValidUrgency(urgency) {
		writeError(w, http.StatusBadRequest, "invalid urgency")
		return
	}
	if strings.TrimSpace(req.Hospital) == "" {
		writeError(w, http.StatusBadRequest, "hospital is required")
		return
	}
	if req.SentTo == viewerID {
		writeError(w, http.StatusBadRequest, "cannot send a request to yourself")
		return
	}

	requester, err := h.users.GetByID(r.Context(), viewerID)
	if err != nil {
		logger.Errorf("create request load user=%s: %v", viewerID, err)
		writeError(w, http.StatusInternalServerError, "failed to create request")
		return
	}

	br, err := h.svc.Create(r.Context(), requester, request.CreateParams{
		BloodGroup: req.BloodGroup,
		Urgency:    urgency,
		Hospital:   strings.TrimSpace(req.Hospital),
		Location:   geo.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
		Notes:      req.Notes,
		SentTo:     req.SentTo,
	})
	if err != nil {
		logger.Errorf("create request user=%s: %v", viewerID, err)
		writeError(w, http.StatusInternalServerError, "failed to create request")
		return
	}

	h.notifyRecipients(r.Context(), br)
	writeJSON(w, http.StatusOK, br)
}

// notifyRecipients fans the new request out: a targeted request notifies
// its single recipient, a broadcast notifies every matching donor. Failures
// are logged and swallowed so the request itself always succeeds.
func (h *RequestHandler) notifyRecipients(ctx context.Context, br *model.BloodRequest) {
	var targets []string
	if br.SentTo != "" {
		targets = []string{br.SentTo}
	} else {
		ids, err := h.users.ListByBloodGroup(ctx, br.BloodGroup, br.RequesterID)
		if err != nil {
			logger.Errorf("request fan-out list %s donors: %v", br.BloodGroup, err)
			return
		}
		targets = ids
	}

	title := fmt.Sprintf("%s blood needed", br.BloodGroup)
	body := fmt.Sprintf("%s needs %s blood at %s", br.RequesterName, br.BloodGroup, br.Hospital)
	if br.Urgency == model.UrgencyEmergency {
		title = "Emergency: " + title
	}
	data := map[string]string{"request_id": br.ID, "type": "blood_request"}

	for _, userID := range targets {
		n := &model.Notification{
			ID:        uuid.New().String(),
			UserID:    userID,
			Title:     title,
			Body:      body,
			Data:      data,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.notifications.Create(ctx, n); err != nil {
			logger.Errorf("store notification for %s: %v", userID, err)
		}
		if h.pushClient != nil {
			h.pushClient.Notify(ctx, userID, title, body, data)
		}
		if h.hub != nil {
			h.hub.SendToUser(userID, ws.OutgoingMessage{Type: ws.EventRequestUpdate, Payload: br})
		}
	}
}

func (h *RequestHandler) GetRequests(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	tab := request.Tab(r.URL.Query().Get("tab"))
	if tab == "" {
		tab = request.TabReceiving
	}
	if tab != request.TabSending && tab != request.TabReceiving {
		writeError(w, http.StatusBadRequest, "tab must be sending or receiving")
		return
	}

	viewer, err := h.users.GetByID(r.Context(), viewerID)
	if err != nil {
		logger.Errorf("list requests load user=%s: %v", viewerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load requests")
		return
	}

	reqs, err := h.svc.Tab(r.Context(), viewerID, viewer.BloodGroup, tab)
	if err != nil {
		logger.Errorf("list requests user=%s tab=%s: %v", viewerID, tab, err)
		writeError(w, http.StatusInternalServerError, "failed to load requests")
		return
	}

	type requestWithName struct {
		model.BloodRequest
		DisplayName string `json:"display_name"`
	}
	out := make([]requestWithName, 0, len(reqs))
	for i := range reqs {
		out = append(out, requestWithName{
			BloodRequest: reqs[i],
			DisplayName:  h.svc.DisplayName(r.Context(), &reqs[i], tab),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out, "tab": tab})
}

func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	br, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		logger.Errorf("get request %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load request")
		return
	}
	writeJSON(w, http.StatusOK, br)
}

func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	br, err := h.svc.Accept(r.Context(), id, viewerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		case errors.Is(err, request.ErrNotPending):
			writeError(w, http.StatusConflict, "request is no longer pending")
		default:
			logger.Errorf("accept request %s by %s: %v", id, viewerID, err)
			writeError(w, http.StatusInternalServerError, "failed to accept request")
		}
		return
	}

	h.notifyStatusChange(r.Context(), br, "Request accepted",
		fmt.Sprintf("A donor accepted your %s blood request", br.BloodGroup))
	writeJSON(w, http.StatusOK, br)
}

func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	existing, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		logger.Errorf("cancel request load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to cancel request")
		return
	}
	if existing.RequesterID != viewerID {
		writeError(w, http.StatusForbidden, "only the requester can cancel")
		return
	}

	br, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, request.ErrNotPending) {
			writeError(w, http.StatusConflict, "request is no longer pending")
			return
		}
		logger.Errorf("cancel request %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to cancel request")
		return
	}

	if h.hub != nil {
		h.hub.SendToUser(br.RequesterID, ws.OutgoingMessage{Type: ws.EventRequestUpdate, Payload: br})
	}
	writeJSON(w, http.StatusOK, br)
}

// GetRequestChat opens (or returns) the chat between the viewer and the
// request's counterparty: the accepting donor when the viewer sent the
// request, the requester otherwise.
func (h *RequestHandler) GetRequestChat(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	br, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		logger.Errorf("request chat load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	tab := request.TabReceiving
	if br.RequesterID == viewerID {
		tab = request.TabSending
	}
	correspondent := request.Correspondent(br, tab)
	if correspondent == "" {
		writeError(w, http.StatusConflict, "no donor has accepted yet")
		return
	}

	c, err := h.chatSvc.GetOrCreate(r.Context(), viewerID, correspondent)
	if err != nil {
		if errors.Is(err, chat.ErrSelfChat) {
			writeError(w, http.StatusBadRequest, "cannot open a chat with yourself")
			return
		}
		logger.Errorf("request chat %s viewer=%s: %v", id, viewerID, err)
		writeError(w, http.StatusInternalServerError, "failed to open chat")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// notifyStatusChange tells the requester their request moved state.
func (h *RequestHandler) notifyStatusChange(ctx context.Context, br *model.BloodRequest, title, body string) {
	data := map[string]string{"request_id": br.ID, "type": "request_update"}
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    br.RequesterID,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.notifications.Create(ctx, n); err != nil {
		logger.Errorf("store notification for %s: %v", br.RequesterID, err)
	}
	if h.pushClient != nil {
		h.pushClient.Notify(ctx, br.RequesterID, title, body, data)
	}
	if h.hub != nil {
		h.hub.SendToUser(br.RequesterID, ws.OutgoingMessage{Type: ws.EventRequestUpdate, Payload: br})
	}
}
