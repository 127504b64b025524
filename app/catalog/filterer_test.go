package catalog

import (
	"fmt"
	"math"
	"testing"
)

// kmNorth returns a latitude offset along a meridian for a haversine
// distance of km on the mean earth radius.
func kmNorth(lat, km float64) float64 {
	return lat + km/(6371.0*math.Pi/180)
}

func loadStore(items ...Item) *Store {
	store := NewStore()
	store.LoadItems(items)
	return store
}

func ids(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Item.ID
	}
	return out
}

func TestFilterer_CategoryFilter(t *testing.T) {
	store := loadStore(
		Item{ID: "1", Name: "One", Categories: []string{"A", "B"}},
		Item{ID: "2", Name: "Two", Categories: []string{"B"}},
		Item{ID: "3", Name: "Three", Categories: []string{"A"}},
	)

	state := NewFilterState([]string{"A"})
	result := NewFilterer().Run(store.Items(), store.Current(), state)

	got := fmt.Sprint(ids(result))
	if got != "[1 3]" {
		t.Errorf("Expected items [1 3], got %s", got)
	}
}

func TestFilterer_DuplicatesOnly(t *testing.T) {
	store := loadStore(
		Item{ID: "1", Name: "Shop A", Link: "https://example.com/shop/?ref=x", Categories: []string{"A"}},
		Item{ID: "2", Name: "Shop B", Link: "https://EXAMPLE.com/shop", Categories: []string{"A"}},
		Item{ID: "3", Name: "Shop C", Link: "https://other.example", Categories: []string{"A"}},
		Item{ID: "4", Name: "Shop D", Categories: []string{"A"}},
	)

	state := NewFilterState([]string{"A"})
	state.DuplicatesOnly = true
	result := NewFilterer().Run(store.Items(), store.Current(), state)

	if got := fmt.Sprint(ids(result)); got != "[1 2]" {
		t.Errorf("Expected items [1 2], got %s", got)
	}
}

func TestFilterer_Search(t *testing.T) {
	store := loadStore(
		Item{ID: "1", Name: "Kafé Skogen", Categories: []string{"A"}},
		Item{ID: "2", Name: "Affär", Categories: []string{"A"}},
		Item{ID: "3", Name: "Kaffebönan", Categories: []string{"A"}},
	)

	state := NewFilterState([]string{"A"})
	state.Query = "  KAF "
	result := NewFilterer().Run(store.Items(), store.Current(), state)

	if got := fmt.Sprint(ids(result)); got != "[1 3]" {
		t.Errorf("Expected items [1 3] in collation order, got %s", got)
	}
}

func TestFilterer_SwedishCollation(t *testing.T) {
	store := loadStore(
		Item{ID: "1", Name: "Örebro", Categories: []string{"A"}},
		Item{ID: "2", Name: "Zeta", Categories: []string{"A"}},
		Item{ID: "3", Name: "Ängen", Categories: []string{"A"}},
		Item{ID: "4", Name: "Åsen", Categories: []string{"A"}},
		Item{ID: "5", Name: "Alfa", Categories: []string{"A"}},
	)

	result := NewFilterer().Run(store.Items(), store.Current(), NewFilterState([]string{"A"}))

	want := []string{"Alfa", "Zeta", "Åsen", "Ängen", "Örebro"}
	for i, m := range result {
		if m.Item.Name != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], m.Item.Name)
		}
	}
}

func TestFilterer_DistanceSort(t *testing.T) {
	store := loadStore(
		Item{ID: "far", Name: "A", Categories: []string{"A"}, Lat: kmNorth(59.33, 500), Lng: 18.06},
		Item{ID: "near", Name: "B", Categories: []string{"A"}, Lat: kmNorth(59.33, 1), Lng: 18.06},
		Item{ID: "mid", Name: "C", Categories: []string{"A"}, Lat: kmNorth(59.33, 50), Lng: 18.06},
	)

	state := NewFilterState([]string{"A"})
	state.UserPos = &Position{Lat: 59.33, Lon: 18.06}
	result := NewFilterer().Run(store.Items(), store.Current(), state)

	if got := fmt.Sprint(ids(result)); got != "[near mid far]" {
		t.Fatalf("Expected [near mid far], got %s", got)
	}
	for i, want := range []string{"1.0", "50.0", "500.0"} {
		if got := fmt.Sprintf("%.1f", result[i].DistanceKm); got != want {
			t.Errorf("Expected distance %s km, got %s", want, got)
		}
		if !result[i].HasDistance {
			t.Error("Expected HasDistance to be set")
		}
	}
}

func TestFilterer_ZeroDistanceSortsFirst(t *testing.T) {
	store := loadStore(
		Item{ID: "away", Name: "A", Categories: []string{"A"}, Lat: 60, Lng: 18},
		Item{ID: "here", Name: "B", Categories: []string{"A"}, Lat: 59.33, Lng: 18.06},
		Item{ID: "broken", Name: "C", Categories: []string{"A"}, Lat: math.NaN(), Lng: 18.06},
	)

	state := NewFilterState([]string{"A"})
	state.UserPos = &Position{Lat: 59.33, Lon: 18.06}
	result := NewFilterer().Run(store.Items(), store.Current(), state)

	if got := fmt.Sprint(ids(result)); got != "[here away broken]" {
		t.Errorf("Expected [here away broken], got %s", got)
	}
	if !math.IsInf(result[2].DistanceKm, 1) {
		t.Errorf("Expected +Inf distance for broken coordinates, got %v", result[2].DistanceKm)
	}
}

func TestFilterer_CategoryMonotonic(t *testing.T) {
	store := loadStore(
		Item{ID: "1", Name: "a1", Categories: []string{"A"}},
		Item{ID: "2", Name: "b1", Categories: []string{"B"}},
		Item{ID: "3", Name: "ab", Categories: []string{"A", "B"}},
		Item{ID: "4", Name: "c1", Categories: []string{"C"}},
	)
	f := NewFilterer()

	narrow := f.Run(store.Items(), store.Current(), NewFilterState([]string{"A"}))
	wide := f.Run(store.Items(), store.Current(), NewFilterState([]string{"A", "B"}))

	visible := make(map[string]bool)
	for _, m := range wide {
		visible[m.Item.ID] = true
	}
	for _, m := range narrow {
		if !visible[m.Item.ID] {
			t.Errorf("Item %s disappeared after enabling another category", m.Item.ID)
		}
	}
	if len(wide) < len(narrow) {
		t.Errorf("Expected wider filter to keep at least %d items, got %d", len(narrow), len(wide))
	}
}

func TestFilterer_SearchMonotonic(t *testing.T) {
	store := loadStore(
		Item{ID: "1", Name: "Kafé Skogen", Categories: []string{"A"}},
		Item{ID: "2", Name: "Kaffebönan", Categories: []string{"A"}},
		Item{ID: "3", Name: "Kaktus", Categories: []string{"A"}},
	)
	f := NewFilterer()

	prev := len(store.Items()) + 1
	for _, q := range []string{"k", "ka", "kaf", "kaff", "kaffe"} {
		state := NewFilterState([]string{"A"})
		state.Query = q
		n := len(f.Run(store.Items(), store.Current(), state))
		if n > prev {
			t.Errorf("Query %q grew the visible set from %d to %d", q, prev, n)
		}
		prev = n
	}
}

func TestFilterer_NoCategoriesNeverVisible(t *testing.T) {
	store := loadStore(Item{ID: "1", Name: "Untagged"})

	result := NewFilterer().Run(store.Items(), store.Current(), NewFilterState([]string{"A"}))
	if len(result) != 0 {
		t.Errorf("Expected untagged item to be hidden, got %d matches", len(result))
	}
}

func TestPosition_Valid(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{"stockholm", Position{Lat: 59.33, Lon: 18.06}, true},
		{"corner", Position{Lat: -90, Lon: 180}, true},
		{"nan", Position{Lat: math.NaN(), Lon: 18}, false},
		{"infinite", Position{Lat: 59, Lon: math.Inf(-1)}, false},
		{"latitude range", Position{Lat: 90.5, Lon: 18}, false},
		{"longitude range", Position{Lat: 59, Lon: -180.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pos.Valid(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
