package catalog

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// PlaceholderName is shown for items without a usable name.
const PlaceholderName = "(namnlös)"

type Address struct {
	Street      string `json:"street,omitempty"`
	Housenumber string `json:"housenumber,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	City        string `json:"city,omitempty"`
}

// Line joins the components as "street housenumber, postcode city".
func (a Address) Line() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(a.Street + " " + a.Housenumber); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(a.Postcode + " " + a.City); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func (a Address) IsZero() bool {
	return a == Address{}
}

type Item struct {
	ID           string
	Name         string
	Link         string
	Categories   []string
	Lat          float64
	Lng          float64
	OpenNow      *bool
	LinkOK       *bool
	Bookable     bool
	Address      string
	Addr         Address
	OpeningHours string
	SiteKey      string

	nameLower string
	catSet    map[string]struct{}
}

// prepare fills the derived fields. Safe to call more than once.
func (i *Item) prepare() {
	i.Name = strings.TrimSpace(i.Name)
	if i.Name == "" {
		i.Name = PlaceholderName
	}
	if i.Address == "" {
		i.Address = i.Addr.Line()
	}
	i.SiteKey = NormalizeSiteKey(i.Link)
	i.nameLower = strings.ToLower(i.Name)
	i.catSet = make(map[string]struct{}, len(i.Categories))
	for _, c := range i.Categories {
		i.catSet[c] = struct{}{}
	}
}

func (i Item) NameLower() string {
	if i.nameLower == "" && i.Name != "" {
		return strings.ToLower(i.Name)
	}
	return i.nameLower
}

func (i Item) HasCategory(key string) bool {
	if i.catSet == nil {
		for _, c := range i.Categories {
			if c == key {
				return true
			}
		}
		return false
	}
	_, ok := i.catSet[key]
	return ok
}

// PrimaryCategory is the tag that drives icon and color, empty when untagged.
func (i Item) PrimaryCategory() string {
	if len(i.Categories) == 0 {
		return ""
	}
	return i.Categories[0]
}

func (i Item) Point() orb.Point {
	return orb.Point{i.Lng, i.Lat}
}

type LoadStats struct {
	Features int `json:"features"`
	Loaded   int `json:"loaded"`
	Skipped  int `json:"skipped"`
	Replaced int `json:"replaced"`
}

type Match struct {
	Item        Item
	DistanceKm  float64
	HasDistance bool
}

// Position is a user location in WGS84 degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Valid reports whether both coordinates are finite and in range.
func (p Position) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

type FilterState struct {
	Active         map[string]bool
	Query          string
	DuplicatesOnly bool
	UserPos        *Position
}

// NewFilterState activates every given category key.
func NewFilterState(keys []string) FilterState {
	active := make(map[string]bool, len(keys))
	for _, k := range keys {
		active[k] = true
	}
	return FilterState{Active: active}
}

func (s FilterState) Clone() FilterState {
	out := s
	out.Active = make(map[string]bool, len(s.Active))
	for k, v := range s.Active {
		if v {
			out.Active[k] = true
		}
	}
	if s.UserPos != nil {
		pos := *s.UserPos
		out.UserPos = &pos
	}
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
