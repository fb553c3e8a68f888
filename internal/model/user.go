package model

import (
	"time"

	"github.com/bloodlink/internal/geo"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// BloodGroups lists the eight supported ABO/Rh combinations.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// ValidBloodGroup reports whether s is one of the eight supported groups.
func ValidBloodGroup(s string) bool {
	for _, g := range BloodGroups {
		if g == s {
			return true
		}
	}
	return false
}

type User struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	Name             string           `json:"name"`
	Phone            string           `json:"phone"`
	PasswordHash     string           `json:"-"`
	BloodGroup       string           `json:"blood_group"`
	Gender           Gender           `json:"gender"`
	Age              int              `json:"age"`
	Availability     Availability     `json:"availability"`
	Location         *geo.Coordinates `json:"location,omitempty"`
	LastDonationDate *time.Time       `json:"last_donation_date,omitempty"`
	ProfileImageURL  string           `json:"profile_image_url,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// UserPublic is the user shape exposed to other users (no email/phone/hash).
type UserPublic struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	BloodGroup      string       `json:"blood_group"`
	Availability    Availability `json:"availability"`
	ProfileImageURL string       `json:"profile_image_url,omitempty"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:              u.ID,
		Name:            u.Name,
		BloodGroup:      u.BloodGroup,
		Availability:    u.Availability,
		ProfileImageURL: u.ProfileImageURL,
	}
}

// ToDonor projects the user into its donor view. Distance is left unset;
// it is derived per viewer by the ranking engine.
func (u *User) ToDonor() Donor {
	return Donor{
		ID:               u.ID,
		UserID:           u.ID,
		Name:             u.Name,
		BloodGroup:       u.BloodGroup,
		Availability:     u.Availability,
		Location:         u.Location,
		LastDonationDate: u.LastDonationDate,
		ProfileImageURL:  u.ProfileImageURL,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
