package catalog

import (
	"fmt"
	"testing"
)

func TestStore_LastWriteWins(t *testing.T) {
	store := NewStore()

	stats := store.LoadItems([]Item{
		{ID: "x", Name: "First", Categories: []string{"a"}},
		{ID: "y", Name: "Other", Categories: []string{"a"}},
		{ID: "x", Name: "Second", Categories: []string{"a"}},
	})

	if store.Len() != 2 {
		t.Fatalf("Expected 2 items, got %d", store.Len())
	}
	if stats.Replaced != 1 {
		t.Errorf("Expected 1 replaced item, got %d", stats.Replaced)
	}
	item, ok := store.Get("x")
	if !ok || item.Name != "Second" {
		t.Errorf("Expected last write to win, got %+v", item)
	}
}

func TestStore_DuplicateIndex(t *testing.T) {
	store := NewStore()
	store.LoadItems([]Item{
		{ID: "1", Link: "https://example.com/shop/?ref=x"},
		{ID: "2", Link: "https://EXAMPLE.com/shop"},
		{ID: "3", Link: "https://other.example"},
		{ID: "4"},
	})

	if got := store.DuplicateCount("https://example.com/shop"); got != 2 {
		t.Errorf("Expected duplicate count 2, got %d", got)
	}

	first, _ := store.Get("1")
	third, _ := store.Get("3")
	fourth, _ := store.Get("4")
	if !store.IsDuplicate(first) {
		t.Error("Expected item 1 to be a duplicate")
	}
	if store.IsDuplicate(third) || store.IsDuplicate(fourth) {
		t.Error("Expected items 3 and 4 not to be duplicates")
	}

	sum := 0
	for _, n := range store.DuplicateIndex() {
		sum += n
	}
	withKey := 0
	for _, item := range store.Items() {
		if item.SiteKey != "" {
			withKey++
		}
	}
	if sum != withKey {
		t.Errorf("Expected index sum %d to equal items with site key %d", sum, withKey)
	}
}

func TestStore_LoadReplacesState(t *testing.T) {
	store := NewStore()
	store.LoadItems([]Item{{ID: "old", Link: "https://a.example"}, {ID: "old2", Link: "https://a.example"}})

	if _, err := store.Load([]byte(`{"features":[{"geometry":{"type":"Point","coordinates":[1,2]},"properties":{"id":"new"}}]}`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, ok := store.Get("old"); ok {
		t.Error("Expected previous items to be gone")
	}
	if store.DuplicateCount("https://a.example") != 0 {
		t.Error("Expected previous duplicate index to be gone")
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 item, got %d", store.Len())
	}
}

func TestStore_FailedLoadKeepsState(t *testing.T) {
	store := NewStore()
	store.LoadItems([]Item{{ID: "keep"}})

	if _, err := store.Load([]byte(`{"type":"FeatureCollection"}`)); err == nil {
		t.Fatal("Expected error for envelope without features")
	}
	if _, ok := store.Get("keep"); !ok {
		t.Error("Expected previous items to survive a failed load")
	}
}

func TestStore_ItemsOrderedByID(t *testing.T) {
	store := NewStore()
	var items []Item
	for _, id := range []string{"c", "a", "b"} {
		items = append(items, Item{ID: id, Name: fmt.Sprintf("Item %s", id)})
	}
	store.LoadItems(items)

	got := store.Items()
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("Expected items ordered by id, got %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestStore_ScenarioMissingCoordinates(t *testing.T) {
	data := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[18.0,59.0]},"properties":{"id":"1","name":"One"}},
	  {"type":"Feature","geometry":{"type":"Point"},"properties":{"id":"2","name":"Two"}},
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[18.1,59.1]},"properties":{"id":"3","name":"Three"}}
	]}`

	store := NewStore()
	stats, err := store.Load([]byte(data))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("Expected 2 items, got %d", store.Len())
	}
	if stats.Skipped != 1 {
		t.Errorf("Expected 1 skipped feature, got %d", stats.Skipped)
	}
}
