package model

import (
	"time"

	"github.com/bloodlink/internal/geo"
)

type Availability string

const (
	AvailabilityAvailable   Availability = "Available"
	AvailabilityBusy        Availability = "Busy"
	AvailabilityUnavailable Availability = "Unavailable"
)

// Order returns the fixed sort precedence Available < Busy < Unavailable.
// Missing or unrecognized values sort as Unavailable.
func (a Availability) Order() int {
	switch a {
	case AvailabilityAvailable:
		return 0
	case AvailabilityBusy:
		return 1
	default:
		return 2
	}
}

// Donor is a user in their capacity as a potential blood supplier.
// Distance is a per-viewer cache in meters: it is valid only until either
// the viewer's location or the donor's location changes, and is never
// persisted.
type Donor struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Name             string           `json:"name"`
	BloodGroup       string           `json:"blood_group"`
	Availability     Availability     `json:"availability"`
	Location         *geo.Coordinates `json:"location,omitempty"`
	LastDonationDate *time.Time       `json:"last_donation_date,omitempty"`
	ProfileImageURL  string           `json:"profile_image_url,omitempty"`
	Distance         *int             `json:"distance,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
