package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/source"
)

var emptyCollection = []byte(`{"type":"FeatureCollection","features":[]}`)

// Fetcher is satisfied by source.Chain.
type Fetcher interface {
	Fetch(ctx context.Context) (source.Result, error)
}

type ReloadStatus struct {
	Source   string            `json:"source,omitempty"`
	Stats    catalog.LoadStats `json:"stats"`
	Error    string            `json:"error,omitempty"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// Directory owns the catalog shared by all sessions.
type Directory struct {
	store      *catalog.Store
	categories *catalog.CategoryTable
	filterer   *catalog.Filterer

	mu      sync.RWMutex
	payload []byte
	status  ReloadStatus
}

func NewDirectory(categories *catalog.CategoryTable) *Directory {
	return &Directory{
		store:      catalog.NewStore(),
		categories: categories,
		filterer:   catalog.NewFilterer(),
		payload:    emptyCollection,
	}
}

func (d *Directory) Store() *catalog.Store {
	return d.store
}

func (d *Directory) Categories() *catalog.CategoryTable {
	return d.categories
}

func (d *Directory) Filterer() *catalog.Filterer {
	return d.filterer
}

// Reload fetches a new catalog. Any failure leaves an empty catalog in
// place; a partially read catalog is never applied.
func (d *Directory) Reload(ctx context.Context, fetcher Fetcher) (ReloadStatus, error) {
	status := ReloadStatus{LoadedAt: time.Now()}

	result, err := fetcher.Fetch(ctx)
	if err != nil {
		return d.fail(status, fmt.Errorf("failed to fetch catalog: %w", err))
	}
	status.Source = result.Source

	items, stats, err := catalog.DecodeFeatures(result.Data)
	if err != nil {
		return d.fail(status, fmt.Errorf("failed to decode catalog from %s: %w", result.Source, err))
	}

	loaded := d.store.LoadItems(items)
	stats.Loaded = loaded.Loaded
	stats.Replaced = loaded.Replaced
	status.Stats = stats

	d.mu.Lock()
	d.payload = result.Data
	d.status = status
	d.mu.Unlock()

	slog.Info("Catalog loaded",
		"source", result.Source,
		"features", stats.Features,
		"loaded", stats.Loaded,
		"skipped", stats.Skipped,
		"replaced", stats.Replaced)

	return status, nil
}

func (d *Directory) fail(status ReloadStatus, err error) (ReloadStatus, error) {
	d.store.LoadItems(nil)
	status.Error = err.Error()

	d.mu.Lock()
	d.payload = emptyCollection
	d.status = status
	d.mu.Unlock()

	slog.Error("Catalog unavailable, serving empty catalog", "error", err)
	return status, err
}

// Payload is the raw GeoJSON of the current catalog.
func (d *Directory) Payload() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.payload
}

func (d *Directory) Status() ReloadStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Directory) DefaultFilterState() catalog.FilterState {
	return catalog.NewFilterState(d.categories.Keys())
}

// Search runs the filter against the current catalog.
func (d *Directory) Search(state catalog.FilterState) []catalog.Match {
	snap := d.store.Current()
	return d.filterer.Run(snap.Items(), snap, state)
}

// Render builds a one-off view for a filter state without keeping a session.
func (d *Directory) Render(state catalog.FilterState, width, zoom int) Snapshot {
	s := newSession("", d, width, 0)
	s.state = state.Clone()
	if state.UserPos != nil {
		s.positionSet = true
	}
	if zoom > 0 {
		s.mapView.SetView(s.mapView.Center(), zoom)
	}
	s.recompute()
	return s.snapshotLocked()
}
