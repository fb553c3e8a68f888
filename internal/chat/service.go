// Package chat implements 1:1 chat identity and message ordering: the
// deterministic pair-derived chat id, idempotent get-or-create, message
// sending and the monotonic seen-status transition.
package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/model"
)

// Separator joins the two sorted participant ids into a chat id.
const Separator = "_"

var ErrSelfChat = errors.New("cannot create chat with yourself")

// PairID derives the canonical chat id for an unordered pair of user ids:
// the ids are sorted lexicographically and joined with Separator. The result
// is the same no matter which side initiates, which is what makes
// get-or-create idempotent without any coordination.
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// ChatStore is the chat persistence the service needs.
type ChatStore interface {
	// FindByParticipants returns the chat whose participant set is exactly
	// {a, b}, or nil when none exists (absence is a valid outcome here).
	FindByParticipants(ctx context.Context, a, b string) (*model.Chat, error)
	Create(ctx context.Context, c *model.Chat) error
	ListByParticipant(ctx context.Context, userID string) ([]model.Chat, error)
	Touch(ctx context.Context, id string, t time.Time) error
}

// MessageStore is the per-chat message persistence the service needs.
// ListByChat must return messages ordered by timestamp ascending.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	Get(ctx context.Context, chatID, messageID string) (*model.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]model.Message, error)
	UpdateStatus(ctx context.Context, chatID, messageID string, status model.MessageStatus) error
	LastMessage(ctx context.Context, chatID string) (*model.Message, error)
}

type Service struct {
	chats ChatStore
	msgs  MessageStore
	now   func() time.Time
}

func NewService(chats ChatStore, msgs MessageStore) *Service {
	return &Service{chats: chats, msgs: msgs, now: time.Now}
}

// GetOrCreate returns the chat between the two users, creating it when it
// does not exist yet. Because the id is a pure function of the pair,
// concurrent callers converge on the same chat id without locking.
func (s *Service) GetOrCreate(ctx context.Context, currentUserID, otherUserID string) (*model.Chat, error) {
	if currentUserID == otherUserID {
		return nil, ErrSelfChat
	}

	existing, err := s.chats.FindByParticipants(ctx, currentUserID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("chat.GetOrCreate find: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now().UTC()
	c := &model.Chat{
		ID:           PairID(currentUserID, otherUserID),
		Participants: []string{currentUserID, otherUserID},
		UnreadCount:  0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.chats.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("chat.GetOrCreate create: %w", err)
	}
	return c, nil
}

// Send persists a new message with status "sent". The caller's in-memory
// message list is deliberately NOT updated here: delivery happens only via
// the subscription/poll path, so there is a single source of truth and no
// duplicate entries from racing a local append against the live update.
func (s *Service) Send(ctx context.Context, chatID, senderID, text, imageURL string) (*model.Message, error) {
	now := s.now().UTC()
	m := &model.Message{
		ID:        newMessageID(now),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		ImageURL:  imageURL,
		Status:    model.MessageStatusSent,
		Timestamp: now,
	}
	if err := s.msgs.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("chat.Send: %w", err)
	}
	// Bump the chat's activity timestamp so list ordering follows the
	// latest message. The message itself is already persisted, so a failed
	// bump only delays reordering until the next send.
	if err := s.chats.Touch(ctx, chatID, now); err != nil {
		logger.Errorf("chat.Send touch %s: %v", chatID, err)
	}
	return m, nil
}

// Messages returns the chat's full message list ordered by timestamp
// ascending. Consumers replace their whole list with each delivery.
func (s *Service) Messages(ctx context.Context, chatID string) ([]model.Message, error) {
	msgs, err := s.msgs.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("chat.Messages: %w", err)
	}
	now := s.now()
	for i := range msgs {
		model.NormalizeMessage(&msgs[i], now)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

// MarkSeen promotes a message's status to "seen" and persists it. The
// transition is monotonic: a message already seen stays seen, and no status
// ever regresses.
func (s *Service) MarkSeen(ctx context.Context, chatID, messageID string) error {
	m, err := s.msgs.Get(ctx, chatID, messageID)
	if err != nil {
		return fmt.Errorf("chat.MarkSeen get: %w", err)
	}
	if m.Status == model.MessageStatusSeen {
		return nil
	}
	if !m.Status.CanTransitionTo(model.MessageStatusSeen) {
		return nil
	}
	if err := s.msgs.UpdateStatus(ctx, chatID, messageID, model.MessageStatusSeen); err != nil {
		return fmt.Errorf("chat.MarkSeen update: %w", err)
	}
	return nil
}

// ListForUser returns the user's chats with the denormalized last-message
// snapshot filled in, newest activity first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.Chat, error) {
	chats, err := s.chats.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("chat.ListForUser: %w", err)
	}
	for i := range chats {
		last, err := s.msgs.LastMessage(ctx, chats[i].ID)
		if err != nil {
			return nil, fmt.Errorf("chat.ListForUser last message chat=%s: %w", chats[i].ID, err)
		}
		if last != nil {
			chats[i].LastMessage = last
			t := last.Timestamp
			chats[i].LastMessageTime = &t
		}
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return activityTime(&chats[i]).After(activityTime(&chats[j]))
	})
	return chats, nil
}

func activityTime(c *model.Chat) time.Time {
	if c.LastMessageTime != nil {
		return *c.LastMessageTime
	}
	return c.UpdatedAt
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// newMessageID builds "msg_<unixmilli>_<9 random base36 chars>". Practically
// unique within a chat; not meant to be cryptographically unique.
func newMessageID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return "msg_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}
