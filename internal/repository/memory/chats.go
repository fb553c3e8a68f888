package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
)

type ChatStore struct {
	mu    sync.RWMutex
	chats map[string]model.Chat
}

func NewChatStore() *ChatStore {
	return &ChatStore{chats: make(map[string]model.Chat)}
}

func (s *ChatStore) Create(_ context.Context, c *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Same semantics as the SQL ON CONFLICT DO NOTHING: both sides of a
	// pair can race Create and only one record survives.
	if _, ok := s.chats[c.ID]; ok {
		return nil
	}
	s.chats[c.ID] = cloneChat(*c)
	return nil
}

func (s *ChatStore) GetByID(_ context.Context, id string) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cc := cloneChat(c)
	return &cc, nil
}

func (s *ChatStore) FindByParticipants(_ context.Context, a, b string) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chats {
		if c.HasParticipant(a) && c.HasParticipant(b) {
			cc := cloneChat(c)
			return &cc, nil
		}
	}
	return nil, nil
}

func (s *ChatStore) ListByParticipant(_ context.Context, userID string) ([]model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, cloneChat(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *ChatStore) Touch(_ context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.UpdatedAt = t
	s.chats[id] = c
	return nil
}

func cloneChat(c model.Chat) model.Chat {
	c.Participants = append([]string(nil), c.Participants...)
	if c.LastMessage != nil {
		m := *c.LastMessage
		c.LastMessage = &m
	}
	if c.LastMessageTime != nil {
		t := *c.LastMessageTime
		c.LastMessageTime = &t
	}
	return c
}
