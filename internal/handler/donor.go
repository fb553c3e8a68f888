package handler

import (
	"context"
	"net/http"

	"github.com/bloodlink/internal/donor"
	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/logger"
	"github.com/bloodlink/internal/middleware"
	"github.com/bloodlink/internal/model"
	"github.com/bloodlink/internal/storage"
)

// UserLister loads the donor candidate pool.
type UserLister interface {
	List(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type DonorHandler struct {
	users         UserLister
	kv            storage.Store
	defaultRadius int
}

func NewDonorHandler(users UserLister, kv storage.Store, defaultRadius int) *DonorHandler {
	return &DonorHandler{users: users, kv: kv, defaultRadius: defaultRadius}
}

// viewerLocation resolves the viewer's position: explicit lat/lon query
// params win, then the cached last location, then the persisted profile
// location. A nil result is fine; distance features just switch off.
func (h *DonorHandler) viewerLocation(ctx context.Context, r *http.Request, viewerID string) *geo.Coordinates {
	lat, okLat := queryFloat(r, "lat")
	lon, okLon := queryFloat(r, "lon")
	if okLat && okLon {
		return &geo.Coordinates{Latitude: lat, Longitude: lon}
	}
	if loc, err := h.kv.GetLastLocation(ctx, viewerID); err == nil && loc != nil {
		return loc
	}
	if u, err := h.users.GetByID(ctx, viewerID); err == nil && u.Location != nil {
		return u.Location
	}
	return nil
}

func (h *DonorHandler) donorPool(ctx context.Context) ([]model.Donor, error) {
	users, err := h.users.List(ctx)
	if err != nil {
		return nil, err
	}
	donors := make([]model.Donor, 0, len(users))
	for i := range users {
		donors = append(donors, users[i].ToDonor())
	}
	now := nowUTC()
	for i := range donors {
		model.NormalizeDonor(&donors[i], now)
	}
	return donors, nil
}

// GetDonors returns the ranked, optionally filtered donor list for the
// viewer. All filters are optional; without a viewer location the distance
// filter and distance sort are skipped rather than rejected.
func (h *DonorHandler) GetDonors(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	donors, err := h.donorPool(r.Context())
	if err != nil {
		logger.Errorf("donor list user=%s: %v", viewerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load donors")
		return
	}
	viewerLoc := h.viewerLocation(r.Context(), r, viewerID)

	opts := donor.FilterOptions{
		BloodGroup:   r.URL.Query().Get("blood_group"),
		Availability: model.Availability(r.URL.Query().Get("availability")),
		MaxDistance:  queryInt(r, "max_distance", 0),
		SortBy:       donor.SortMode(r.URL.Query().Get("sort_by")),
	}
	if opts.BloodGroup != "" && !model.ValidBloodGroup(opts.BloodGroup) {
		writeError(w, http.StatusBadRequest, "unknown blood group")
		return
	}

	ranked := donor.Rank(donors, viewerID, viewerLoc)
	result := donor.Filter(ranked, viewerLoc, opts)
	writeJSON(w, http.StatusOK, map[string]any{"donors": result})
}

// GetNearby returns donors of one blood group within a radius, closest
// first. Unlike GetDonors the radius always applies; it falls back to the
// configured default when the query omits it.
func (h *DonorHandler) GetNearby(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	bloodGroup := r.URL.Query().Get("blood_group")
	if bloodGroup != "" && !model.ValidBloodGroup(bloodGroup) {
		writeError(w, http.StatusBadRequest, "unknown blood group")
		return
	}
	maxDistance := queryInt(r, "max_distance", h.defaultRadius)
	if maxDistance <= 0 {
		maxDistance = h.defaultRadius
	}

	donors, err := h.donorPool(r.Context())
	if err != nil {
		logger.Errorf("nearby donors user=%s: %v", viewerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load donors")
		return
	}
	viewerLoc := h.viewerLocation(r.Context(), r, viewerID)
	result := donor.Nearby(donors, viewerID, viewerLoc, bloodGroup, maxDistance)
	writeJSON(w, http.StatusOK, map[string]any{"donors": result, "radius_meters": maxDistance})
}
