package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/repository"
	"github.com/bloodlink/internal/storage"
)

// UserStore is the account persistence the profile endpoints need.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
	UpdateAvailability(ctx context.Context, id string, a model.Availability, updatedAt time.Time) error
}

type UserHandler struct {
	users UserStore
	kv    storage.Store
}

func NewUserHandler(users UserStore, kv storage.Store) *UserHandler {
	return &UserHandler{users: users, kv: kv}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("get profile user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// updateProfileRequest carries the editable profile fields. Pointers
// distinguish "leave unchanged" from "set to zero value".
type updateProfileRequest struct {
	Name             *string       `json:"name"`
	Phone            *string       `json:"phone"`
	BloodGroup       *string       `json:"blood_group"`
	Gender           *model.Gender `json:"gender"`
	Age              *int          `json:"age"`
	LastDonationDate *time.Time    `json:"last_donation_date"`
	ProfileImageURL  *string       `json:"profile_image_url"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		u.Name = name
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.BloodGroup != nil {
		if !model.ValidBloodGroup(*req.BloodGroup) {
			writeError(w, http.StatusBadRequest, "unknown blood group")
			return
		}
		u.BloodGroup = *req.BloodGroup
	}
	if req.Gender != nil {
		u.Gender = *req.Gender
	}
	if req.Age != nil {
		if *req.Age < 16 || *req.Age > 120 {
			writeError(w, http.StatusBadRequest, "age out of range")
			return
		}
		u.Age = *req.Age
	}
	if req.LastDonationDate != nil {
		u.LastDonationDate = req.LastDonationDate
	}
	if req.ProfileImageURL != nil {
		u.ProfileImageURL = *req.ProfileImageURL
	}
	u.UpdatedAt = time.Now().UTC()

	if err := h.users.Update(r.Context(), u); err != nil {
		logger.Errorf("update profile user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type availabilityRequest struct {
	Availability model.Availability `json:"availability"`
}

// UpdateAvailability flips the donor's availability. This is the only
// profile field with its own endpoint: it is toggled constantly and the
// donor lists react to it on the next refresh.
func (h *UserHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Availability {
	case model.AvailabilityAvailable, model.AvailabilityBusy, model.AvailabilityUnavailable:
	default:
		writeError(w, http.StatusBadRequest, "unknown availability")
		return
	}
	if err := h.users.UpdateAvailability(r.Context(), userID, req.Availability, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("update availability user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to update availability")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"availability": string(req.Availability)})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		logger.Errorf("get user %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u.ToPublic())
}

func (h *UserHandler) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	done, err := h.kv.IsOnboarded(r.Context(), userID)
	if err != nil {
		logger.Errorf("get onboarding user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load onboarding state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": done})
}

func (h *UserHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := h.kv.SetOnboarded(r.Context(), userID); err != nil {
		logger.Errorf("set onboarding user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to save onboarding state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": true})
}
