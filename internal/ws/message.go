package ws

import "github.com/bloodlink/internal/model"

type EventType string

const (
	EventNewMessage  EventType = "new_message"
	EventMessageSeen EventType = "message_seen"
	EventTyping      EventType = "typing"

	EventChatMessages  EventType = "chat_messages"
	EventChatList      EventType = "chat_list"
	EventDonors        EventType = "donors"
	EventRequestUpdate EventType = "request_update"
	EventError         EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chat_id,omitempty"`

	// For new_message
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	// For message_seen
	MessageID string `json:"message_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ChatMessagesPayload carries a chat's complete ordered message list.
// Clients replace their local list with it wholesale; there is no
// incremental append path, so ordering is always the server's.
type ChatMessagesPayload struct {
	ChatID   string          `json:"chat_id"`
	Messages []model.Message `json:"messages"`
}

// ChatListPayload carries the viewer's chat list, newest activity first.
type ChatListPayload struct {
	Chats []model.Chat `json:"chats"`
}

// DonorsPayload carries a ranked donor snapshot for the viewer.
type DonorsPayload struct {
	Donors []model.Donor `json:"donors"`
}

// TypingPayload is sent to the other participant while a user types.
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}
