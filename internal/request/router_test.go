package request_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
	"github.com/bloodlink/internal/repository/memory"
	"github.com/bloodlink/internal/request"
)

func mkRequest(id, requester, group, sentTo string) model.BloodRequest {
	return model.BloodRequest{
		ID:          id,
		RequesterID: requester,
		BloodGroup:  group,
		SentTo:      sentTo,
		Status:      model.RequestStatusPending,
	}
}

func ids(reqs []model.BloodRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}

func TestSendingTabOwnRequestsOnly(t *testing.T) {
	reqs := []model.BloodRequest{
		mkRequest("r1", "alice", "A+", ""),
		mkRequest("r2", "bob", "A+", ""),
		mkRequest("r3", "alice", "O-", "bob"),
	}
	assert.Equal(t, []string{"r1", "r3"}, ids(request.SendingTab(reqs, "alice")))
}

func TestReceivingTabTargetedAndBroadcast(t *testing.T) {
	reqs := []model.BloodRequest{
		mkRequest("targeted", "alice", "A+", "bob"),
		mkRequest("broadcast-match", "carol", "B+", ""),
		mkRequest("broadcast-other", "carol", "A+", ""),
		mkRequest("own", "bob", "B+", ""),
		mkRequest("for-someone-else", "alice", "B+", "dave"),
	}
	got := request.ReceivingTab(reqs, "bob", "B+")
	assert.Equal(t, []string{"targeted", "broadcast-match"}, ids(got))
}

func TestReceivingTabNoBloodGroup(t *testing.T) {
	// A viewer without a blood group still sees targeted requests but no
	// broadcasts: there is nothing to match against.
	reqs := []model.BloodRequest{
		mkRequest("targeted", "alice", "A+", "bob"),
		mkRequest("broadcast", "carol", "B+", ""),
	}
	got := request.ReceivingTab(reqs, "bob", "")
	assert.Equal(t, []string{"targeted"}, ids(got))
}

func TestAcceptOnlyFromPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := mkRequest("r1", "alice", "A+", "")

	require.NoError(t, request.Accept(&r, "bob", now))
	assert.Equal(t, model.RequestStatusAccepted, r.Status)
	assert.Equal(t, "bob", r.AcceptedBy)

	assert.ErrorIs(t, request.Accept(&r, "carol", now), request.ErrNotPending)
	assert.Equal(t, "bob", r.AcceptedBy)
	assert.ErrorIs(t, request.Cancel(&r, now), request.ErrNotPending)
}

func TestCorrespondent(t *testing.T) {
	r := mkRequest("r1", "alice", "A+", "")
	r.AcceptedBy = "bob"
	assert.Equal(t, "bob", request.Correspondent(&r, request.TabSending))
	assert.Equal(t, "alice", request.Correspondent(&r, request.TabReceiving))
}

type stubUsers struct{}

func (stubUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	return &model.User{ID: id, Name: "Name of " + id}, nil
}

func newService(t *testing.T) (*request.Service, *model.User) {
	t.Helper()
	svc := request.NewService(memory.NewRequestStore(), stubUsers{})
	requester := &model.User{ID: "alice", Name: "Alice", BloodGroup: "A+"}
	return svc, requester
}

func TestServiceCreateDefaults(t *testing.T) {
	svc, requester := newService(t)
	r, err := svc.Create(context.Background(), requester, request.CreateParams{
		BloodGroup: "O-",
		Urgency:    model.UrgencyEmergency,
		Hospital:   "City Hospital",
		Location:   geo.Coordinates{Latitude: 52.52, Longitude: 13.405},
	})
	require.NoError(t, err)
	assert.Contains(t, r.ID, "request_alice_")
	assert.Equal(t, "Alice", r.RequesterName)
	assert.Equal(t, model.RequestStatusPending, r.Status)
	assert.True(t, r.IsBroadcast())
}

func TestServiceAcceptIsSingleWinner(t *testing.T) {
	svc, requester := newService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, requester, request.CreateParams{
		BloodGroup: "A+", Urgency: model.UrgencyMedium, Hospital: "St. Mary",
	})
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, r.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusAccepted, accepted.Status)
	assert.Equal(t, "bob", accepted.AcceptedBy)

	_, err = svc.Accept(ctx, r.ID, "carol")
	assert.ErrorIs(t, err, request.ErrNotPending)
	_, err = svc.Cancel(ctx, r.ID)
	assert.ErrorIs(t, err, request.ErrNotPending)
}

func TestServiceCancelTerminal(t *testing.T) {
	svc, requester := newService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, requester, request.CreateParams{
		BloodGroup: "A+", Urgency: model.UrgencyLow, Hospital: "St. Mary",
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusCancelled, cancelled.Status)

	_, err = svc.Accept(ctx, r.ID, "bob")
	assert.ErrorIs(t, err, request.ErrNotPending)
}

func TestServiceGetUnknown(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestServiceTabPartition(t *testing.T) {
	svc, requester := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, requester, request.CreateParams{
		BloodGroup: "B+", Urgency: model.UrgencyMedium, Hospital: "City",
	})
	require.NoError(t, err)

	sending, err := svc.Tab(ctx, "alice", "A+", request.TabSending)
	require.NoError(t, err)
	assert.Len(t, sending, 1)

	receiving, err := svc.Tab(ctx, "alice", "B+", request.TabReceiving)
	require.NoError(t, err)
	assert.Empty(t, receiving, "own requests never show on the receiving tab")

	other, err := svc.Tab(ctx, "bob", "B+", request.TabReceiving)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
