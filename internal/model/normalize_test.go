package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAvailability(t *testing.T) {
	assert.Equal(t, AvailabilityAvailable, NormalizeAvailability(AvailabilityAvailable))
	assert.Equal(t, AvailabilityUnavailable, NormalizeAvailability(""))
	assert.Equal(t, AvailabilityUnavailable, NormalizeAvailability("sometimes"))
}

func TestNormalizeMessageDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := Message{Status: "weird"}
	NormalizeMessage(&m, now)
	assert.Equal(t, MessageStatusSent, m.Status)
	assert.Equal(t, now, m.Timestamp)

	seen := Message{Status: MessageStatusSeen, Timestamp: now.Add(-time.Hour)}
	NormalizeMessage(&seen, now)
	assert.Equal(t, MessageStatusSeen, seen.Status)
	assert.Equal(t, now.Add(-time.Hour), seen.Timestamp)
}

func TestNormalizeRequestDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := BloodRequest{Status: "odd", Urgency: "whenever"}
	NormalizeRequest(&r, now)
	assert.Equal(t, RequestStatusPending, r.Status)
	assert.Equal(t, UrgencyLow, r.Urgency)
	assert.Equal(t, now, r.CreatedAt)
	assert.Equal(t, now, r.UpdatedAt)
}

func TestMessageStatusNeverRegresses(t *testing.T) {
	assert.True(t, MessageStatusSent.CanTransitionTo(MessageStatusDelivered))
	assert.True(t, MessageStatusSent.CanTransitionTo(MessageStatusSeen))
	assert.True(t, MessageStatusDelivered.CanTransitionTo(MessageStatusSeen))
	assert.True(t, MessageStatusSeen.CanTransitionTo(MessageStatusSeen))
	assert.False(t, MessageStatusSeen.CanTransitionTo(MessageStatusDelivered))
	assert.False(t, MessageStatusSeen.CanTransitionTo(MessageStatusSent))
	assert.False(t, MessageStatusDelivered.CanTransitionTo(MessageStatusSent))
}

func TestValidBloodGroup(t *testing.T) {
	for _, g := range BloodGroups {
		assert.True(t, ValidBloodGroup(g), g)
	}
	assert.False(t, ValidBloodGroup("C+"))
	assert.False(t, ValidBloodGroup(""))
	assert.False(t, ValidBloodGroup("a+"))
}
