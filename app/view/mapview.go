package view

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/lysyi3m/lawnmap/app/catalog"
)

const (
	DefaultZoom = 5
	MinZoom     = 0
	MaxZoom     = 18

	// Markers are never clustered at or above this zoom.
	ClusterDisableZoom = 14

	// Cells are 1/4 of a 256px tile, close to a 50px cluster radius.
	clusterCellZoomOffset = 2
)

// DefaultCenter is Sweden.
var DefaultCenter = orb.Point{15.0, 62.0}

var ErrUnknownItem = errors.New("unknown item")

type Marker struct {
	ItemID     string   `json:"id"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Color      string   `json:"color"`
	Icon       string   `json:"icon"`
	Categories []string `json:"categories"`

	nameLower string
}

type Cluster struct {
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Count   int      `json:"count"`
	ItemIDs []string `json:"ids"`
}

type MapState struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Zoom      int     `json:"zoom"`
	OpenPopup string  `json:"open_popup,omitempty"`
	PopupHTML string  `json:"popup_html,omitempty"`
}

// MapView keeps one marker per visible item.
type MapView struct {
	categories *catalog.CategoryTable
	bus        *Bus

	markers []Marker
	items   map[string]catalog.Item
	byID    map[string]int

	center    orb.Point
	zoom      int
	openPopup string
}

func NewMapView(categories *catalog.CategoryTable, bus *Bus) *MapView {
	m := &MapView{
		categories: categories,
		bus:        bus,
		items:      make(map[string]catalog.Item),
		byID:       make(map[string]int),
		center:     DefaultCenter,
		zoom:       DefaultZoom,
	}
	bus.OnFocus(func(e FocusEvent) error {
		return m.FocusOn(e.ItemID, e.Zoom)
	})
	return m
}

// SetVisible replaces the marker set. An open popup survives only when its
// item is still visible.
func (m *MapView) SetVisible(matches []catalog.Match) {
	m.markers = make([]Marker, 0, len(matches))
	m.items = make(map[string]catalog.Item, len(matches))
	m.byID = make(map[string]int, len(matches))

	for _, match := range matches {
		item := match.Item
		primary := item.PrimaryCategory()
		c := m.categories.Lookup(primary)
		m.byID[item.ID] = len(m.markers)
		m.items[item.ID] = item
		m.markers = append(m.markers, Marker{
			ItemID:     item.ID,
			Lat:        item.Lat,
			Lng:        item.Lng,
			Color:      c.Color,
			Icon:       m.categories.IconURL(primary),
			Categories: item.Categories,
			nameLower:  item.NameLower(),
		})
	}

	if _, ok := m.byID[m.openPopup]; !ok {
		m.openPopup = ""
	}
}

func (mk Marker) NameLower() string {
	return mk.nameLower
}

func (m *MapView) Markers() []Marker {
	out := make([]Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

func (m *MapView) MarkerCount() int {
	return len(m.markers)
}

func (m *MapView) Zoom() int {
	return m.zoom
}

func (m *MapView) Center() orb.Point {
	return m.center
}

// SetView moves the viewport; zoom is clamped to the supported range.
func (m *MapView) SetView(center orb.Point, zoom int) {
	m.center = center
	m.zoom = clampZoom(zoom)
}

// FocusOn centers on the item, zooms in at least to zoom and keeps zooming
// until the marker is no longer hidden in a cluster, then opens its popup.
func (m *MapView) FocusOn(itemID string, zoom int) error {
	pos, ok := m.byID[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	marker := m.markers[pos]

	z := clampZoom(max(zoom, m.zoom))
	for z < ClusterDisableZoom && m.clusterSize(marker, z) > 1 {
		z++
	}

	m.center = orb.Point{marker.Lng, marker.Lat}
	m.zoom = z
	m.openPopup = itemID
	return nil
}

// ClickMarker opens the popup and publishes a select event.
func (m *MapView) ClickMarker(itemID string) error {
	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	m.openPopup = itemID
	m.bus.PublishSelect(SelectEvent{Item: item, Lat: item.Lat, Lng: item.Lng})
	return nil
}

func (m *MapView) ClosePopup() {
	m.openPopup = ""
}

func (m *MapView) OpenPopup() string {
	return m.openPopup
}

// Clusters groups markers by map cell at the current zoom. Every marker is
// in exactly one cluster; singletons have Count 1.
func (m *MapView) Clusters() []Cluster {
	return m.clustersAt(m.zoom)
}

func (m *MapView) clustersAt(zoom int) []Cluster {
	if zoom >= ClusterDisableZoom {
		out := make([]Cluster, len(m.markers))
		for i, mk := range m.markers {
			out[i] = Cluster{Lat: mk.Lat, Lng: mk.Lng, Count: 1, ItemIDs: []string{mk.ItemID}}
		}
		return out
	}

	cellZoom := maptile.Zoom(zoom + clusterCellZoomOffset)
	groups := make(map[maptile.Tile]*Cluster)
	var order []maptile.Tile

	for _, mk := range m.markers {
		tile := maptile.At(orb.Point{mk.Lng, mk.Lat}, cellZoom)
		c, ok := groups[tile]
		if !ok {
			c = &Cluster{}
			groups[tile] = c
			order = append(order, tile)
		}
		c.Count++
		c.Lat += mk.Lat
		c.Lng += mk.Lng
		c.ItemIDs = append(c.ItemIDs, mk.ItemID)
	}

	out := make([]Cluster, 0, len(order))
	for _, tile := range order {
		c := groups[tile]
		c.Lat /= float64(c.Count)
		c.Lng /= float64(c.Count)
		sort.Strings(c.ItemIDs)
		out = append(out, *c)
	}
	return out
}

func (m *MapView) clusterSize(marker Marker, zoom int) int {
	if zoom >= ClusterDisableZoom {
		return 1
	}
	cellZoom := maptile.Zoom(zoom + clusterCellZoomOffset)
	target := maptile.At(orb.Point{marker.Lng, marker.Lat}, cellZoom)

	n := 0
	for _, mk := range m.markers {
		if maptile.At(orb.Point{mk.Lng, mk.Lat}, cellZoom) == target {
			n++
		}
	}
	return n
}

// PopupHTML renders the popup of a visible item.
func (m *MapView) PopupHTML(itemID string) (string, error) {
	item, ok := m.items[itemID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}

	var buf bytes.Buffer
	buf.WriteString(`<div class="popup">`)
	buf.WriteString("<strong>")
	if primary := item.PrimaryCategory(); primary != "" {
		buf.WriteString(m.categories.IconHTML(primary, 14))
	}
	buf.WriteString(html.EscapeString(item.Name))
	buf.WriteString("</strong>")
	if badges := joinNonEmpty(openBadge(item.OpenNow), linkBadge(item.LinkOK)); badges != "" {
		buf.WriteString(" " + badges)
	}
	buf.WriteString("<br/>")

	buf.WriteString("<small>")
	for i, key := range item.Categories {
		if i > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(categoryBadge(m.categories, key))
	}
	if item.Bookable {
		buf.WriteString(" • Bokningsbar")
	}
	buf.WriteString("</small>")

	label := "Länk"
	if item.Bookable {
		label = "Boka"
	}
	if link := outboundLink(item.Link, label, ""); link != "" {
		buf.WriteString("<br/>" + link)
	}
	buf.WriteString("</div>")

	return buf.String(), nil
}

func (m *MapView) State() MapState {
	s := MapState{
		Lat:       m.center.Lat(),
		Lng:       m.center.Lon(),
		Zoom:      m.zoom,
		OpenPopup: m.openPopup,
	}
	if m.openPopup != "" {
		s.PopupHTML, _ = m.PopupHTML(m.openPopup)
	}
	return s
}

func clampZoom(z int) int {
	return min(max(z, MinZoom), MaxZoom)
}
