package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository/memory"
)

func newTestService() *Service {
	return NewService(memory.NewChatStore(), memory.NewMessageStore())
}

func TestPairIDOrderIndependent(t *testing.T) {
	assert.Equal(t, PairID("alice", "bob"), PairID("bob", "alice"))
	assert.Equal(t, "alice_bob", PairID("bob", "alice"))
}

func TestGetOrCreateIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := svc.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, second.Participants)

	chats, err := svc.ListForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestGetOrCreateRejectsSelfChat(t *testing.T) {
	svc := newTestService()
	_, err := svc.GetOrCreate(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, ErrSelfChat)
}

func TestSendAssignsSentStatusAndOrdering(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	c, err := svc.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	first, err := svc.Send(ctx, c.ID, "alice", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, first.Status)
	assert.Equal(t, "alice", first.SenderID)

	second, err := svc.Send(ctx, c.ID, "bob", "hi", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	msgs, err := svc.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "hi", msgs[1].Text)
	assert.True(t, msgs[0].Timestamp.Before(msgs[1].Timestamp))
}

func TestMarkSeenIsMonotonic(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	c, err := svc.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	m, err := svc.Send(ctx, c.ID, "alice", "hello", "")
	require.NoError(t, err)

	require.NoError(t, svc.MarkSeen(ctx, c.ID, m.ID))
	// A second call is a no-op, not an error.
	require.NoError(t, svc.MarkSeen(ctx, c.ID, m.ID))

	msgs, err := svc.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageStatusSeen, msgs[0].Status)
}

func TestMarkSeenUnknownMessage(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, err := svc.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Error(t, svc.MarkSeen(ctx, c.ID, "missing"))
}

func TestListForUserNewestActivityFirst(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	withBob, err := svc.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	withCarol, err := svc.GetOrCreate(ctx, "alice", "carol")
	require.NoError(t, err)

	_, err = svc.Send(ctx, withBob.ID, "alice", "first", "")
	require.NoError(t, err)
	_, err = svc.Send(ctx, withCarol.ID, "alice", "second", "")
	require.NoError(t, err)

	chats, err := svc.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, withCarol.ID, chats[0].ID)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "second", chats[0].LastMessage.Text)
	require.NotNil(t, chats[1].LastMessage)
	assert.Equal(t, "first", chats[1].LastMessage.Text)
}
