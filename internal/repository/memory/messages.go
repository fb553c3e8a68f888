package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
)

type MessageStore struct {
	mu      sync.RWMutex
	byChat  map[string][]model.Message
	byIndex map[string]map[string]int
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byChat:  make(map[string][]model.Message),
		byIndex: make(map[string]map[string]int),
	}
}

func (s *MessageStore) Create(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byIndex[m.ChatID]
	if !ok {
		idx = make(map[string]int)
		s.byIndex[m.ChatID] = idx
	}
	idx[m.ID] = len(s.byChat[m.ChatID])
	s.byChat[m.ChatID] = append(s.byChat[m.ChatID], *m)
	return nil
}

func (s *MessageStore) Get(_ context.Context, chatID, messageID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byIndex[chatID][messageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m := s.byChat[chatID][i]
	return &m, nil
}

func (s *MessageStore) ListByChat(_ context.Context, chatID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.Message(nil), s.byChat[chatID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MessageStore) LastMessage(_ context.Context, chatID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byChat[chatID]
	if len(msgs) == 0 {
		return nil, nil
	}
	last := msgs[0]
	for _, m := range msgs[1:] {
		if !m.Timestamp.Before(last.Timestamp) {
			last = m
		}
	}
	return &last, nil
}

func (s *MessageStore) UpdateStatus(_ context.Context, chatID, messageID string, status model.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byIndex[chatID][messageID]
	if !ok {
		return repository.ErrNotFound
	}
	if !s.byChat[chatID][i].Status.CanTransitionTo(status) {
		return nil
	}
	s.byChat[chatID][i].Status = status
	return nil
}
