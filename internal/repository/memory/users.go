// Package memory holds in-process store implementations backed by
// mutex-guarded maps. They serve dev mode and tests; the pgx repositories
// in the parent package are the production counterparts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]model.User)}
}

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) Update(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *UserStore) UpdateAvailability(_ context.Context, id string, a model.Availability, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Availability = a
	u.UpdatedAt = updatedAt
	s.users[id] = u
	return nil
}

func (s *UserStore) UpdateLocation(_ context.Context, id string, loc geo.Coordinates, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Location = &loc
	u.UpdatedAt = updatedAt
	s.users[id] = u
	return nil
}

func (s *UserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *UserStore) ListByBloodGroup(_ context.Context, bloodGroup, excludeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, u := range s.users {
		if u.BloodGroup == bloodGroup && u.ID != excludeID {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneUser(u model.User) model.User {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	if u.LastDonationDate != nil {
		t := *u.LastDonationDate
		u.LastDonationDate = &t
	}
	return u
}
