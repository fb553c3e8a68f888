package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/storage"
)

// LocationUpdater persists the profile-level location used for ranking.
type LocationUpdater interface {
	UpdateLocation(ctx context.Context, id string, loc geo.Coordinates, updatedAt time.Time) error
}

// LocationHandler writes location twice: the durable copy on the profile
// and a short-lived copy in the KV store that viewer-location resolution
// prefers, so a fresh fix beats a stale profile coordinate.
type LocationHandler struct {
	users LocationUpdater
	kv    storage.Store
}

func NewLocationHandler(users LocationUpdater, kv storage.Store) *LocationHandler {
	return &LocationHandler{users: users, kv: kv}
}

type updateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	loc := geo.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := h.users.UpdateLocation(r.Context(), userID, loc, time.Now().UTC()); err != nil {
		logger.Errorf("update location user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to update location")
		return
	}
	if err := h.kv.SetLastLocation(r.Context(), userID, loc); err != nil {
		logger.Errorf("cache location user=%s: %v", userID, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LocationHandler) GetLastLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	loc, err := h.kv.GetLastLocation(r.Context(), userID)
	if err != nil {
		logger.Errorf("get cached location user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to load location")
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "no recent location")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}
