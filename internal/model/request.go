package model

import (
	"time"

	"github.com/bloodlink/internal/geo"
)

type Urgency string

const (
	UrgencyLow       Urgency = "Low"
	UrgencyMedium    Urgency = "Medium"
	UrgencyEmergency Urgency = "Emergency"
)

// ValidUrgency reports whether u is one of the three urgency labels.
// Urgency is display-only severity; it does not affect routing or sorting.
func ValidUrgency(u Urgency) bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyEmergency
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "Pending"
	RequestStatusAccepted  RequestStatus = "Accepted"
	RequestStatusCompleted RequestStatus = "Completed"
	RequestStatusCancelled RequestStatus = "Cancelled"
)

// BloodRequest is a plea for blood. SentTo empty means a broadcast request,
// visible to every viewer whose blood group matches; SentTo set means a
// targeted request, visible only to the requester and the target donor.
// Pending is the only state from which Accepted or Cancelled is reachable.
type BloodRequest struct {
	ID            string          `json:"id"`
	RequesterID   string          `json:"requester_id"`
	RequesterName string          `json:"requester_name"`
	BloodGroup    string          `json:"blood_group"`
	Urgency       Urgency         `json:"urgency"`
	Hospital      string          `json:"hospital"`
	Location      geo.Coordinates `json:"location"`
	Notes         string          `json:"notes,omitempty"`
	Status        RequestStatus   `json:"status"`
	AcceptedBy    string          `json:"accepted_by,omitempty"`
	SentTo        string          `json:"sent_to,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsBroadcast reports whether the request has no specific target donor.
func (r *BloodRequest) IsBroadcast() bool {
	return r.SentTo == ""
}

// Notification is an in-app notification record persisted alongside the
// Web Push delivery.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}
