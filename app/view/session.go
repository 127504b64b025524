package view

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/lawnmap/app/catalog"
)

// SearchDebounce delays applying typed search input.
const SearchDebounce = 150 * time.Millisecond

type FilterSummary struct {
	Active         []string          `json:"active"`
	Query          string            `json:"query"`
	DuplicatesOnly bool              `json:"duplicates_only"`
	UserPosition   *catalog.Position `json:"user_position,omitempty"`
}

type Snapshot struct {
	SessionID     string        `json:"session_id,omitempty"`
	Layout        Mode          `json:"layout"`
	Width         int           `json:"width"`
	Header        string        `json:"header"`
	ListHTML      string        `json:"list_html"`
	Rows          []Row         `json:"rows"`
	Markers       []Marker      `json:"markers"`
	Clusters      []Cluster     `json:"clusters"`
	Map           MapState      `json:"map"`
	Details       DetailsState  `json:"details"`
	Filters       FilterSummary `json:"filters"`
	PendingSearch *string       `json:"pending_search,omitempty"`
	Total         int           `json:"total"`
}

// Session is one UI state with its views. Events are handled one at a time.
type Session struct {
	mu sync.Mutex

	id         string
	dir        *Directory
	bus        *Bus
	mapView    *MapView
	listView   *ListView
	details    *DetailsPanel
	layout     *Layout
	state      catalog.FilterState
	rendered   *catalog.Snapshot
	lastActive time.Time

	positionSet bool

	debounce  time.Duration
	pending   *string
	timer     *time.Timer
	searchSeq uint64
}

func newSession(id string, dir *Directory, width int, debounce time.Duration) *Session {
	bus := NewBus()
	layout := NewLayout(width)
	details := NewDetailsPanel(dir.categories, bus)
	mapView := NewMapView(dir.categories, bus)

	return &Session{
		id:         id,
		dir:        dir,
		bus:        bus,
		mapView:    mapView,
		listView:   NewListView(dir.categories, bus, details, layout, mapView),
		details:    details,
		layout:     layout,
		state:      dir.DefaultFilterState(),
		lastActive: time.Now(),
		debounce:   debounce,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

// recompute must be called with mu held.
func (s *Session) recompute() {
	snap := s.dir.store.Current()
	matches := s.dir.filterer.Run(snap.Items(), snap, s.state)
	s.mapView.SetVisible(matches)
	s.listView.Render(matches, s.state, snap)
	s.rendered = snap
}

// SetSearch schedules the query after the debounce delay. Each call
// restarts the delay.
func (s *Session) SetSearch(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.pending = &raw
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.debounce <= 0 {
		s.applyPendingLocked()
		return
	}
	s.searchSeq++
	seq := s.searchSeq
	s.timer = time.AfterFunc(s.debounce, func() { s.flushIfCurrent(seq) })
}

// flushIfCurrent ignores timers that were superseded while waiting for mu.
func (s *Session) flushIfCurrent(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.searchSeq {
		return
	}
	s.applyPendingLocked()
}

// FlushSearch applies pending search input immediately.
func (s *Session) FlushSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyPendingLocked()
}

func (s *Session) applyPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending == nil {
		return
	}
	s.state.Query = catalog.NormalizeQuery(*s.pending)
	s.pending = nil
	s.recompute()
}

func (s *Session) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.searchSeq++
	s.state.Query = ""
	s.recompute()
}

func (s *Session) ToggleCategory(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state.Active[key] {
		delete(s.state.Active, key)
	} else {
		s.state.Active[key] = true
	}
	s.recompute()
}

func (s *Session) SetCategories(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.state.Active = make(map[string]bool, len(keys))
	for _, k := range keys {
		s.state.Active[k] = true
	}
	s.recompute()
}

func (s *Session) SetDuplicatesOnly(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.state.DuplicatesOnly = on
	s.recompute()
}

// SetUserPosition is accepted once per session; later calls and invalid
// coordinates are ignored and reported false.
func (s *Session) SetUserPosition(lat, lon float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	pos := catalog.Position{Lat: lat, Lon: lon}
	if s.positionSet || !pos.Valid() {
		return false
	}
	s.positionSet = true
	s.state.UserPos = &pos
	s.recompute()
	return true
}

func (s *Session) Resize(width int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.layout.Resize(width)
}

func (s *Session) ShowMap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.layout.ShowMap()
}

func (s *Session) ShowList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.layout.ShowList()
}

func (s *Session) ShowBoth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.layout.ShowBoth()
}

func (s *Session) SetLayout(mode Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.layout.Set(mode)
}

func (s *Session) SetZoom(zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.mapView.SetView(s.mapView.Center(), zoom)
}

func (s *Session) ClickListRow(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.refreshIfStale()
	return s.listView.Click(itemID, s.layout.Width())
}

func (s *Session) ClickMarker(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.refreshIfStale()
	return s.mapView.ClickMarker(itemID)
}

// refreshIfStale re-renders when the catalog was reloaded since the last
// render.
func (s *Session) refreshIfStale() {
	if s.rendered != s.dir.store.Current() {
		s.recompute()
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshIfStale()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	active := make([]string, 0, len(s.state.Active))
	for k, on := range s.state.Active {
		if on {
			active = append(active, k)
		}
	}
	sort.Strings(active)

	snap := Snapshot{
		SessionID: s.id,
		Layout:    s.layout.Mode(),
		Width:     s.layout.Width(),
		Header:    s.listView.Header(),
		ListHTML:  s.listView.HTML(),
		Rows:      s.listView.Rows(),
		Markers:   s.mapView.Markers(),
		Clusters:  s.mapView.Clusters(),
		Map:       s.mapView.State(),
		Details:   s.details.State(),
		Filters: FilterSummary{
			Active:         active,
			Query:          s.state.Query,
			DuplicatesOnly: s.state.DuplicatesOnly,
			UserPosition:   s.state.UserPos,
		},
		Total: s.rendered.Len(),
	}
	if s.pending != nil {
		p := *s.pending
		snap.PendingSearch = &p
	}
	return snap
}

func (s *Session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Registry keeps live sessions by id.
type Registry struct {
	dir      *Directory
	debounce time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(dir *Directory) *Registry {
	return &Registry{
		dir:      dir,
		debounce: SearchDebounce,
		sessions: make(map[string]*Session),
	}
}

// SetDebounce changes the search delay for sessions created afterwards.
func (r *Registry) SetDebounce(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debounce = d
}

func (r *Registry) Create(width int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := newSession(uuid.NewString(), r.dir, width, r.debounce)
	s.mu.Lock()
	s.recompute()
	s.mu.Unlock()

	r.sessions[s.id] = s
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.stop()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than idle and returns how many.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.stop()
	}
	return len(expired)
}
