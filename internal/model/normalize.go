package model

import "time"

// Read-side defaulting lives here, in one place, instead of being scattered
// at each store call site. The backing store may hold documents written by
// older app versions with fields missing; decode applies documented defaults:
// availability -> Unavailable, timestamps -> now, message status -> sent,
// request status -> Pending.

// NormalizeAvailability maps missing or unrecognized values to Unavailable.
func NormalizeAvailability(a Availability) Availability {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityUnavailable:
		return a
	default:
		return AvailabilityUnavailable
	}
}

// NormalizeTime returns t, or now when t is the zero value.
func NormalizeTime(t time.Time, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}

// NormalizeDonor applies read defaults to a donor record in place.
func NormalizeDonor(d *Donor, now time.Time) {
	d.Availability = NormalizeAvailability(d.Availability)
	d.CreatedAt = NormalizeTime(d.CreatedAt, now)
	d.UpdatedAt = NormalizeTime(d.UpdatedAt, now)
}

// NormalizeMessage applies read defaults to a message record in place.
func NormalizeMessage(m *Message, now time.Time) {
	if m.Status != MessageStatusSent && m.Status != MessageStatusDelivered && m.Status != MessageStatusSeen {
		m.Status = MessageStatusSent
	}
	m.Timestamp = NormalizeTime(m.Timestamp, now)
}

// NormalizeRequest applies read defaults to a blood request record in place.
func NormalizeRequest(r *BloodRequest, now time.Time) {
	switch r.Status {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusCompleted, RequestStatusCancelled:
	default:
		r.Status = RequestStatusPending
	}
	if !ValidUrgency(r.Urgency) {
		r.Urgency = UrgencyLow
	}
	r.CreatedAt = NormalizeTime(r.CreatedAt, now)
	r.UpdatedAt = NormalizeTime(r.UpdatedAt, now)
}
