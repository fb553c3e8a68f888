package donor

import (
	"testing"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkDonor(id, name, group string, avail model.Availability, loc *geo.Coordinates) model.Donor {
	return model.Donor{
		ID:           id,
		UserID:       id,
		Name:         name,
		BloodGroup:   group,
		Availability: avail,
		Location:     loc,
	}
}

func names(donors []model.Donor) []string {
	out := make([]string, 0, len(donors))
	for _, d := range donors {
		out = append(out, d.Name)
	}
	return out
}

func TestRankAvailabilityPrecedence(t *testing.T) {
	donors := []model.Donor{
		mkDonor("u1", "Carol", "O+", model.AvailabilityUnavailable, nil),
		mkDonor("u2", "Alice", "A+", model.AvailabilityAvailable, nil),
		mkDonor("u3", "Bob", "B+", model.AvailabilityBusy, nil),
	}
	ranked := Rank(donors, "viewer", nil)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(ranked))
}

func TestRankTiesByName(t *testing.T) {
	donors := []model.Donor{
		mkDonor("u1", "Zoe", "O+", model.AvailabilityAvailable, nil),
		mkDonor("u2", "Anna", "A+", model.AvailabilityAvailable, nil),
		mkDonor("u3", "Mia", "B+", model.AvailabilityAvailable, nil),
	}
	ranked := Rank(donors, "viewer", nil)
	assert.Equal(t, []string{"Anna", "Mia", "Zoe"}, names(ranked))
}

func TestRankUnknownAvailabilitySortsLast(t *testing.T) {
	donors := []model.Donor{
		mkDonor("u1", "Nora", "O+", "", nil),
		mkDonor("u2", "Omar", "A+", model.AvailabilityAvailable, nil),
	}
	ranked := Rank(donors, "viewer", nil)
	assert.Equal(t, []string{"Omar", "Nora"}, names(ranked))
}

func TestRankExcludesViewer(t *testing.T) {
	donors := []model.Donor{
		mkDonor("viewer", "Me", "O+", model.AvailabilityAvailable, nil),
		mkDonor("u2", "Alice", "A+", model.AvailabilityAvailable, nil),
	}
	ranked := Rank(donors, "viewer", nil)
	require.Len(t, ranked, 1)
	assert.Equal(t, "u2", ranked[0].ID)

	// Filter settings never reintroduce the viewer.
	filtered := Filter(ranked, nil, FilterOptions{BloodGroup: "O+"})
	assert.Empty(t, filtered)
}

func TestRankDerivesDistances(t *testing.T) {
	viewerLoc := &geo.Coordinates{Latitude: 0, Longitude: 0}
	near := &geo.Coordinates{Latitude: 0.01, Longitude: 0}
	donors := []model.Donor{
		mkDonor("u1", "Located", "O+", model.AvailabilityAvailable, near),
		mkDonor("u2", "Unlocated", "O+", model.AvailabilityAvailable, nil),
	}
	ranked := Rank(donors, "viewer", viewerLoc)
	require.Len(t, ranked, 2)
	for _, d := range ranked {
		if d.ID == "u1" {
			require.NotNil(t, d.Distance)
			assert.InDelta(t, 1112, *d.Distance, 5)
		} else {
			assert.Nil(t, d.Distance)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	assert.Empty(t, Rank(nil, "viewer", nil))
}

func TestFilterByBloodGroupAndAvailability(t *testing.T) {
	ranked := Rank([]model.Donor{
		mkDonor("u1", "Alice", "O+", model.AvailabilityAvailable, nil),
		mkDonor("u2", "Bob", "O+", model.AvailabilityBusy, nil),
		mkDonor("u3", "Carol", "A+", model.AvailabilityAvailable, nil),
	}, "viewer", nil)

	got := Filter(ranked, nil, FilterOptions{BloodGroup: "O+"})
	assert.Equal(t, []string{"Alice", "Bob"}, names(got))

	got = Filter(ranked, nil, FilterOptions{BloodGroup: "O+", Availability: model.AvailabilityBusy})
	assert.Equal(t, []string{"Bob"}, names(got))
}

func TestFilterMaxDistanceBoundary(t *testing.T) {
	viewerLoc := &geo.Coordinates{Latitude: 0, Longitude: 0}
	at5000 := 5000
	at5001 := 5001
	in := mkDonor("u1", "In", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 1, Longitude: 0})
	in.Distance = &at5000
	out := mkDonor("u2", "Out", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 1, Longitude: 0})
	out.Distance = &at5001
	noLoc := mkDonor("u3", "NoLoc", "O+", model.AvailabilityAvailable, nil)

	got := Filter([]model.Donor{in, out, noLoc}, viewerLoc, FilterOptions{MaxDistance: 5000})
	assert.Equal(t, []string{"In"}, names(got))
}

func TestFilterDistanceSkippedWithoutViewerLocation(t *testing.T) {
	donors := []model.Donor{
		mkDonor("u1", "Alice", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 50, Longitude: 50}),
	}
	// Without a viewer location the distance filter and sort must be no-ops.
	got := Filter(donors, nil, FilterOptions{MaxDistance: 10, SortBy: SortDistance})
	assert.Equal(t, []string{"Alice"}, names(got))
}

func TestFilterSortByDistanceNilLast(t *testing.T) {
	viewerLoc := &geo.Coordinates{Latitude: 0, Longitude: 0}
	donors := []model.Donor{
		mkDonor("u1", "Far", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 0.1, Longitude: 0}),
		mkDonor("u2", "NoLoc", "O+", model.AvailabilityAvailable, nil),
		mkDonor("u3", "Near", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 0.01, Longitude: 0}),
	}
	ranked := Rank(donors, "viewer", viewerLoc)
	got := Filter(ranked, viewerLoc, FilterOptions{SortBy: SortDistance})
	assert.Equal(t, []string{"Near", "Far", "NoLoc"}, names(got))
}

func TestNearbyMandatoryRadius(t *testing.T) {
	viewerLoc := &geo.Coordinates{Latitude: 0, Longitude: 0}
	donors := []model.Donor{
		mkDonor("u1", "Near", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 0.01, Longitude: 0}),
		mkDonor("u2", "Far", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 1, Longitude: 0}),
		mkDonor("u3", "NoLoc", "O+", model.AvailabilityAvailable, nil),
		mkDonor("u4", "WrongGroup", "A-", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 0.01, Longitude: 0}),
	}
	got := Nearby(donors, "viewer", viewerLoc, "O+", 5000)
	// Radius is always active on this path: the location-less donor is out.
	assert.Equal(t, []string{"Near"}, names(got))
}

func TestNearbyWithoutViewerLocationFallsBack(t *testing.T) {
	donors := []model.Donor{
		mkDonor("viewer", "Me", "O+", model.AvailabilityAvailable, nil),
		mkDonor("u2", "Alice", "O+", model.AvailabilityAvailable, nil),
	}
	got := Nearby(donors, "viewer", nil, "O+", 5000)
	assert.Equal(t, []string{"Alice"}, names(got))
}

func TestNearbySortsByDistanceAscending(t *testing.T) {
	viewerLoc := &geo.Coordinates{Latitude: 0, Longitude: 0}
	donors := []model.Donor{
		mkDonor("u1", "B", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 0.03, Longitude: 0}),
		mkDonor("u2", "A", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 0.01, Longitude: 0}),
		mkDonor("u3", "C", "O+", model.AvailabilityAvailable, &geo.Coordinates{Latitude: 0.02, Longitude: 0}),
	}
	got := Nearby(donors, "viewer", viewerLoc, "", 100000)
	assert.Equal(t, []string{"A", "C", "B"}, names(got))
}
