package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
	"github.com/bloodlink/internal/request"
)

type RequestStore struct {
	mu       sync.RWMutex
	requests map[string]model.BloodRequest
	now      func() time.Time
}

func NewRequestStore() *RequestStore {
	return &RequestStore{
		requests: make(map[string]model.BloodRequest),
		now:      time.Now,
	}
}

func (s *RequestStore) Create(_ context.Context, r *model.BloodRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = *r
	return nil
}

func (s *RequestStore) GetByID(_ context.Context, id string) (*model.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *RequestStore) List(_ context.Context) ([]model.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.BloodRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *RequestStore) Accept(_ context.Context, requestID, donorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status != model.RequestStatusPending {
		return request.ErrNotPending
	}
	r.Status = model.RequestStatusAccepted
	r.AcceptedBy = donorID
	r.UpdatedAt = s.now().UTC()
	s.requests[requestID] = r
	return nil
}

func (s *RequestStore) Cancel(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status != model.RequestStatusPending {
		return request.ErrNotPending
	}
	r.Status = model.RequestStatusCancelled
	r.UpdatedAt = s.now().UTC()
	s.requests[requestID] = r
	return nil
}
