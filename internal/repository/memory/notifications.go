package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bloodlink/internal/model"
)

type NotificationStore struct {
	mu     sync.RWMutex
	byUser map[string][]model.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{byUser: make(map[string][]model.Notification)}
}

func (s *NotificationStore) Create(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[n.UserID] = append(s.byUser[n.UserID], *n)
	return nil
}

func (s *NotificationStore) ListByUser(_ context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.Notification(nil), s.byUser[userID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > 50 {
		out = out[:50]
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byUser[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
		}
	}
	return nil
}
