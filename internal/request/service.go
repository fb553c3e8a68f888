package request

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/model"
)

// BroadcastLabel is shown in the sending tab for requests with no target.
const BroadcastLabel = "Broadcast request"

// ProvisionalLabel is shown while a name lookup has not resolved yet.
const ProvisionalLabel = "Unknown donor"

// Store is the blood-request persistence the service needs. List returns
// requests newest first. Accept and Cancel are conditional on Pending and
// return ErrNotPending otherwise, so the monotonic guard holds even with
// concurrent callers.
type Store interface {
	Create(ctx context.Context, r *model.BloodRequest) error
	GetByID(ctx context.Context, id string) (*model.BloodRequest, error)
	List(ctx context.Context) ([]model.BloodRequest, error)
	Accept(ctx context.Context, requestID, donorID string) error
	Cancel(ctx context.Context, requestID string) error
}

// UserGetter resolves user records for display-name lookups.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type Service struct {
	store Store
	users UserGetter
	now   func() time.Time

	mu        sync.RWMutex
	nameCache map[string]string
}

func NewService(store Store, users UserGetter) *Service {
	return &Service{
		store:     store,
		users:     users,
		now:       time.Now,
		nameCache: make(map[string]string),
	}
}

// CreateParams carries the requester-supplied fields of a new request.
// SentTo empty makes it a broadcast request.
type CreateParams struct {
	BloodGroup string
	Urgency    model.Urgency
	Hospital   string
	Location   geo.Coordinates
	Notes      string
	SentTo     string
}

// Create persists a new Pending request on behalf of the requester.
func (s *Service) Create(ctx context.Context, requester *model.User, p CreateParams) (*model.BloodRequest, error) {
	now := s.now().UTC()
	r := &model.BloodRequest{
		ID:            "request_" + requester.ID + "_" + strconv.FormatInt(now.UnixMilli(), 10),
		RequesterID:   requester.ID,
		RequesterName: requester.Name,
		BloodGroup:    p.BloodGroup,
		Urgency:       p.Urgency,
		Hospital:      p.Hospital,
		Location:      p.Location,
		Notes:         p.Notes,
		Status:        model.RequestStatusPending,
		SentTo:        p.SentTo,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("request.Create: %w", err)
	}
	return r, nil
}

// Tab returns the viewer's request list for one tab, newest first.
func (s *Service) Tab(ctx context.Context, viewerID, viewerBloodGroup string, tab Tab) ([]model.BloodRequest, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("request.Tab: %w", err)
	}
	now := s.now()
	for i := range all {
		model.NormalizeRequest(&all[i], now)
	}
	if tab == TabSending {
		return SendingTab(all, viewerID), nil
	}
	return ReceivingTab(all, viewerID, viewerBloodGroup), nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.BloodRequest, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("request.Get: %w", err)
	}
	model.NormalizeRequest(r, s.now())
	return r, nil
}

// Accept marks the request accepted by the viewer. Only Pending requests can
// be accepted; anything else returns ErrNotPending.
func (s *Service) Accept(ctx context.Context, requestID, donorID string) (*model.BloodRequest, error) {
	if err := s.store.Accept(ctx, requestID, donorID); err != nil {
		return nil, fmt.Errorf("request.Accept: %w", err)
	}
	r, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("request.Accept reload: %w", err)
	}
	return r, nil
}

// Cancel marks the request cancelled. Only Pending requests can be
// cancelled; anything else returns ErrNotPending.
func (s *Service) Cancel(ctx context.Context, requestID string) (*model.BloodRequest, error) {
	if err := s.store.Cancel(ctx, requestID); err != nil {
		return nil, fmt.Errorf("request.Cancel: %w", err)
	}
	r, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("request.Cancel reload: %w", err)
	}
	return r, nil
}

// DisplayName resolves the counterparty label for a request row in the
// sending tab: the acceptor once accepted, otherwise the target of a
// targeted request (cached, lazily fetched, provisional while unresolved),
// otherwise the broadcast label. Receiving-tab rows show the requester name,
// which is denormalized onto the request itself.
func (s *Service) DisplayName(ctx context.Context, r *model.BloodRequest, tab Tab) string {
	if tab == TabReceiving {
		return r.RequesterName
	}
	if r.Status == model.RequestStatusAccepted && r.AcceptedBy != "" {
		return s.resolveName(ctx, r.AcceptedBy)
	}
	if r.SentTo != "" {
		return s.resolveName(ctx, r.SentTo)
	}
	return BroadcastLabel
}

// resolveName looks a user name up through the cache. Lookup failures are
// logged and swallowed: the list keeps rendering with a provisional label.
func (s *Service) resolveName(ctx context.Context, userID string) string {
	s.mu.RLock()
	name, ok := s.nameCache[userID]
	s.mu.RUnlock()
	if ok {
		return name
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		if err != nil {
			logger.Errorf("request name lookup user=%s: %v", userID, err)
		}
		return ProvisionalLabel
	}
	s.mu.Lock()
	s.nameCache[userID] = u.Name
	s.mu.Unlock()
	return u.Name
}
