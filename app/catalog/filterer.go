package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DuplicateCounter reports how many items share a site key.
type DuplicateCounter interface {
	DuplicateCount(siteKey string) int
}

type Filterer struct {
	tag language.Tag
}

func NewFilterer() *Filterer {
	return &Filterer{tag: language.Swedish}
}

// Run selects and orders the visible items. Both the map and the list are
// rendered from its result.
func (f *Filterer) Run(items []Item, dupes DuplicateCounter, state FilterState) []Match {
	query := NormalizeQuery(state.Query)

	matches := make([]Match, 0, len(items))
	for _, item := range items {
		if !f.matchesCategories(item, state.Active) {
			continue
		}
		if state.DuplicatesOnly && !f.isDuplicate(item, dupes) {
			continue
		}
		if query != "" && !strings.Contains(item.NameLower(), query) {
			continue
		}

		m := Match{Item: item}
		if state.UserPos != nil {
			m.HasDistance = true
			m.DistanceKm = distanceKm(*state.UserPos, item)
		}
		matches = append(matches, m)
	}

	if state.UserPos != nil {
		f.sortByDistance(matches)
	} else {
		f.sortByName(matches)
	}

	return matches
}

func (f *Filterer) matchesCategories(item Item, active map[string]bool) bool {
	for _, c := range item.Categories {
		if active[c] {
			return true
		}
	}
	return false
}

func (f *Filterer) isDuplicate(item Item, dupes DuplicateCounter) bool {
	if item.SiteKey == "" || dupes == nil {
		return false
	}
	return dupes.DuplicateCount(item.SiteKey) > 1
}

func (f *Filterer) sortByDistance(matches []Match) {
	sort.SliceStable(matches, func(a, b int) bool {
		da, db := matches[a].DistanceKm, matches[b].DistanceKm
		if da != db {
			return da < db
		}
		return matches[a].Item.ID < matches[b].Item.ID
	})
}

func (f *Filterer) sortByName(matches []Match) {
	// Collator is not safe for concurrent use
	coll := collate.New(f.tag)
	sort.SliceStable(matches, func(a, b int) bool {
		if c := coll.CompareString(matches[a].Item.Name, matches[b].Item.Name); c != 0 {
			return c < 0
		}
		return matches[a].Item.ID < matches[b].Item.ID
	})
}

// NormalizeQuery trims and lowercases raw search input.
func NormalizeQuery(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// meanEarthRadiusKm rescales orb's equatorial-radius haversine result.
const meanEarthRadiusKm = 6371.0

// distanceKm is +Inf when the item has no usable coordinates.
func distanceKm(pos Position, item Item) float64 {
	if !isFinite(item.Lat) || !isFinite(item.Lng) || !isFinite(pos.Lat) || !isFinite(pos.Lon) {
		return math.Inf(1)
	}
	d := geo.DistanceHaversine(pos.Point(), item.Point()) * meanEarthRadiusKm / orb.EarthRadius
	if !isFinite(d) {
		return math.Inf(1)
	}
	return d
}
