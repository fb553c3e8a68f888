package ws

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bloodlink/internal/chat"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/model"
)

// PushNotifier sends push notifications. A nil notifier disables push.
type PushNotifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

// ChatGetter resolves a chat by id for membership checks.
type ChatGetter interface {
	GetByID(ctx context.Context, id string) (*model.Chat, error)
}

// UserGetter resolves the sender's profile for push notification titles.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	total    int
	maxConns int

	chatSvc    *chat.Service
	chats      ChatGetter
	users      UserGetter
	pushClient PushNotifier

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(chatSvc *chat.Service, chats ChatGetter, users UserGetter, maxConns int, pushClient PushNotifier) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		chatSvc:    chatSvc,
		chats:      chats,
		users:      users,
		pushClient: pushClient,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Close connections outside the lock (network I/O).
	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// ConnectedUserIDs returns the users with at least one open connection.
// The live poll loops refresh only for connected viewers.
func (h *Hub) ConnectedUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for uid := range h.clients {
		ids = append(ids, uid)
	}
	return ids
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventMessageSeen:
		h.handleMessageSeen(ctx, c, msg)
	case EventTyping:
		h.handleTyping(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	if msg.ChatID == "" || (strings.TrimSpace(msg.Text) == "" && msg.ImageURL == "") {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "chat_id and text required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ch, err := h.chats.GetByID(ctx, msg.ChatID)
	if err != nil {
		logger.Errorf("ws get chat %s user=%s: %v", msg.ChatID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "chat not found"})
		return
	}
	if !ch.HasParticipant(c.userID) {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a participant"})
		return
	}

	m, err := h.chatSvc.Send(ctx, msg.ChatID, c.userID, strings.TrimSpace(msg.Text), msg.ImageURL)
	if err != nil {
		logger.Errorf("ws save message chat=%s user=%s: %v", msg.ChatID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to save message"})
		return
	}

	// The sender gets the refreshed list too, not a local echo. One source
	// of truth keeps both sides' ordering identical.
	h.BroadcastMessages(ctx, ch)

	if h.pushClient != nil {
		senderName := "New message"
		if sender, err := h.users.GetByID(ctx, c.userID); err == nil && sender.Name != "" {
			senderName = sender.Name
		}
		body := m.Text
		if body == "" {
			body = "Image"
		}
		if len(body) > 120 {
			body = body[:117] + "..."
		}
		data := map[string]string{"chat_id": msg.ChatID, "message_id": m.ID}
		for _, uid := range ch.Participants {
			if uid != c.userID {
				go h.pushClient.Notify(context.Background(), uid, senderName, body, data)
			}
		}
	}
}

func (h *Hub) handleMessageSeen(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ChatID == "" || msg.MessageID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ch, err := h.chats.GetByID(ctx, msg.ChatID)
	if err != nil || !ch.HasParticipant(c.userID) {
		return
	}
	if err := h.chatSvc.MarkSeen(ctx, msg.ChatID, msg.MessageID); err != nil {
		logger.Errorf("ws mark seen chat=%s msg=%s: %v", msg.ChatID, msg.MessageID, err)
		return
	}
	h.BroadcastMessages(ctx, ch)
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ChatID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ch, err := h.chats.GetByID(ctx, msg.ChatID)
	if err != nil || !ch.HasParticipant(c.userID) {
		return
	}

	out := OutgoingMessage{
		Type:    EventTyping,
		Payload: TypingPayload{ChatID: msg.ChatID, UserID: c.userID},
	}
	for _, uid := range ch.Participants {
		if uid != c.userID {
			h.SendToUser(uid, out)
		}
	}
}

// BroadcastMessages delivers the chat's full ordered message list to every
// participant. Used after sends, seen transitions and REST writes.
func (h *Hub) BroadcastMessages(ctx context.Context, ch *model.Chat) {
	defer logger.DeferLogDuration("ws.BroadcastMessages", time.Now())()
	msgs, err := h.chatSvc.Messages(ctx, ch.ID)
	if err != nil {
		logger.Errorf("ws broadcast chat %s: %v", ch.ID, err)
		return
	}
	out := OutgoingMessage{Type: EventChatMessages, Payload: ChatMessagesPayload{ChatID: ch.ID, Messages: msgs}}
	for _, uid := range ch.Participants {
		h.SendToUser(uid, out)
	}
}

// SendToUser delivers a message to every open connection of one user.
func (h *Hub) SendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
