// Package donor implements the ranking and filtering engine over donor
// records: self-exclusion, per-viewer distance derivation, availability
// grouping and the filter/sort pipeline behind the donor listing.
package donor

import (
	"sort"
	"sync"

	"github.com/bloodlink/internal/geo"
	"github.com/bloodlink/internal/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortMode string

const (
	SortNone     SortMode = ""
	SortDistance SortMode = "distance"
	SortName     SortMode = "name"
)

// FilterOptions selects donors on top of the baseline (ranked) list.
// Zero values mean "no constraint".
type FilterOptions struct {
	BloodGroup   string
	Availability model.Availability
	MaxDistance  int // meters; 0 disables the distance filter
	SortBy       SortMode
}

// Collator state is shared; collate.Collator is not safe for concurrent use.
var (
	collMu sync.Mutex
	coll   = collate.New(language.Und)
)

func compareNames(a, b string) int {
	collMu.Lock()
	defer collMu.Unlock()
	return coll.CompareString(a, b)
}

// Rank builds the baseline donor listing for a viewer: the viewer's own
// record is excluded, distances are derived for every located donor when the
// viewer's location is known, and the result is grouped by availability
// (Available, then Busy, then Unavailable) with a locale-aware name order
// inside each group. The input slice is not modified.
func Rank(donors []model.Donor, viewerID string, viewerLoc *geo.Coordinates) []model.Donor {
	out := make([]model.Donor, 0, len(donors))
	for _, d := range donors {
		if d.ID == viewerID {
			continue
		}
		d.Distance = deriveDistance(&d, viewerLoc)
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].Availability.Order(), out[j].Availability.Order()
		if oi != oj {
			return oi < oj
		}
		return compareNames(out[i].Name, out[j].Name) < 0
	})
	return out
}

// Filter applies the explicit filter/sort selection on top of a ranked list.
// The distance filter needs a viewer location; without one all
// distance-dependent filtering and sorting is skipped rather than erroring.
func Filter(ranked []model.Donor, viewerLoc *geo.Coordinates, opts FilterOptions) []model.Donor {
	out := make([]model.Donor, 0, len(ranked))
	for _, d := range ranked {
		if opts.BloodGroup != "" && d.BloodGroup != opts.BloodGroup {
			continue
		}
		if opts.Availability != "" && d.Availability != opts.Availability {
			continue
		}
		if opts.MaxDistance > 0 && viewerLoc != nil {
			if d.Distance == nil {
				d.Distance = deriveDistance(&d, viewerLoc)
			}
			// Donors without a location cannot qualify.
			if d.Distance == nil || *d.Distance > opts.MaxDistance {
				continue
			}
		}
		out = append(out, d)
	}

	switch opts.SortBy {
	case SortDistance:
		if viewerLoc != nil {
			sortByDistance(out)
		}
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return compareNames(out[i].Name, out[j].Name) < 0
		})
	}
	return out
}

// Nearby is the recompute path triggered when the selected blood group, the
// selected radius or the viewer location changes. Unlike Filter, the radius
// here is always active: donors without a qualifying distance are excluded.
// With no viewer location it degrades to the plain self-excluded list.
func Nearby(donors []model.Donor, viewerID string, viewerLoc *geo.Coordinates, bloodGroup string, maxDistance int) []model.Donor {
	out := make([]model.Donor, 0, len(donors))
	for _, d := range donors {
		if d.ID == viewerID {
			continue
		}
		out = append(out, d)
	}
	if viewerLoc == nil {
		return out
	}

	filtered := out[:0]
	for _, d := range out {
		d.Distance = deriveDistance(&d, viewerLoc)
		if bloodGroup != "" && d.BloodGroup != bloodGroup {
			continue
		}
		if d.Distance == nil || *d.Distance > maxDistance {
			continue
		}
		filtered = append(filtered, d)
	}
	out = filtered

	sortByDistance(out)
	return out
}

// sortByDistance orders ascending by derived distance; donors without one
// sort after those with one, ties broken by name.
func sortByDistance(donors []model.Donor) {
	sort.SliceStable(donors, func(i, j int) bool {
		di, dj := donors[i].Distance, donors[j].Distance
		if di != nil && dj != nil {
			if *di != *dj {
				return *di < *dj
			}
			return compareNames(donors[i].Name, donors[j].Name) < 0
		}
		if di != nil {
			return true
		}
		if dj != nil {
			return false
		}
		return compareNames(donors[i].Name, donors[j].Name) < 0
	})
}

// deriveDistance recomputes the viewer-relative distance cache. It is nil
// whenever either operand is unknown; a stale value from a previous viewer
// location is never reused.
func deriveDistance(d *model.Donor, viewerLoc *geo.Coordinates) *int {
	if viewerLoc == nil || d.Location == nil {
		return nil
	}
	dist := geo.Distance(*viewerLoc, *d.Location)
	return &dist
}
