package model

import "time"

// Chat is a 1:1 conversation. Its ID is derived from the unordered pair of
// participant ids (see chat.PairID), so get-or-create is idempotent no matter
// which side initiates.
type Chat struct {
	ID              string     `json:"id"`
	Participants    []string   `json:"participants"`
	LastMessage     *Message   `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasParticipant reports whether userID is one of the chat's participants.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusSeen      MessageStatus = "seen"
)

// rank returns the ordinal position in the sent -> delivered -> seen chain.
// Unknown statuses rank as sent.
func (s MessageStatus) rank() int {
	switch s {
	case MessageStatusSeen:
		return 2
	case MessageStatusDelivered:
		return 1
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving from s to next is monotonic.
// Status never regresses (seen stays seen).
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	return next.rank() >= s.rank()
}

type Message struct {
	ID        string        `json:"id"`
	ChatID    string        `json:"chat_id"`
	SenderID  string        `json:"sender_id"`
	Text      string        `json:"text"`
	ImageURL  string        `json:"image_url,omitempty"`
	Status    MessageStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// ChatWithPartner is a chat enriched with the other participant's public
// profile for list rendering.
type ChatWithPartner struct {
	Chat    Chat        `json:"chat"`
	Partner *UserPublic `json:"partner,omitempty"`
}
