package catalog

import (
	"sort"
	"sync"
)

// Snapshot is one immutable generation of the catalog.
type Snapshot struct {
	items []Item
	byID  map[string]int
	dupes map[string]int
}

func newSnapshot(items []Item) (*Snapshot, int) {
	byID := make(map[string]int, len(items))
	deduped := make([]Item, 0, len(items))
	replaced := 0

	for _, item := range items {
		item.prepare()
		if pos, ok := byID[item.ID]; ok {
			deduped[pos] = item
			replaced++
			continue
		}
		byID[item.ID] = len(deduped)
		deduped = append(deduped, item)
	}

	sort.Slice(deduped, func(a, b int) bool { return deduped[a].ID < deduped[b].ID })

	snap := &Snapshot{
		items: deduped,
		byID:  make(map[string]int, len(deduped)),
		dupes: make(map[string]int),
	}
	for pos, item := range deduped {
		snap.byID[item.ID] = pos
		if item.SiteKey != "" {
			snap.dupes[item.SiteKey]++
		}
	}

	return snap, replaced
}

func (s *Snapshot) Get(id string) (Item, bool) {
	pos, ok := s.byID[id]
	if !ok {
		return Item{}, false
	}
	return s.items[pos], true
}

// Items returns every item ordered by id. The slice is a copy.
func (s *Snapshot) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Snapshot) Len() int {
	return len(s.items)
}

func (s *Snapshot) DuplicateCount(siteKey string) int {
	if siteKey == "" {
		return 0
	}
	return s.dupes[siteKey]
}

func (s *Snapshot) IsDuplicate(item Item) bool {
	return s.DuplicateCount(item.SiteKey) > 1
}

func (s *Snapshot) DuplicateIndex() map[string]int {
	out := make(map[string]int, len(s.dupes))
	for k, v := range s.dupes {
		out[k] = v
	}
	return out
}

// Store holds the current catalog generation. Loads replace it wholesale.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewStore() *Store {
	empty, _ := newSnapshot(nil)
	return &Store{snap: empty}
}

// Load decodes a FeatureCollection and swaps it in. On error the previous
// generation stays in place.
func (s *Store) Load(data []byte) (LoadStats, error) {
	items, stats, err := DecodeFeatures(data)
	if err != nil {
		return stats, err
	}

	loaded := s.LoadItems(items)
	stats.Loaded = loaded.Loaded
	stats.Replaced = loaded.Replaced
	return stats, nil
}

func (s *Store) LoadItems(items []Item) LoadStats {
	snap, replaced := newSnapshot(items)

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	return LoadStats{
		Features: len(items),
		Loaded:   snap.Len(),
		Replaced: replaced,
	}
}

func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Store) Get(id string) (Item, bool) {
	return s.Current().Get(id)
}

func (s *Store) Items() []Item {
	return s.Current().Items()
}

func (s *Store) Len() int {
	return s.Current().Len()
}

func (s *Store) DuplicateCount(siteKey string) int {
	return s.Current().DuplicateCount(siteKey)
}

func (s *Store) IsDuplicate(item Item) bool {
	return s.Current().IsDuplicate(item)
}

func (s *Store) DuplicateIndex() map[string]int {
	return s.Current().DuplicateIndex()
}
