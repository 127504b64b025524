package api

import (
	"context"
	"time"

	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/source"
	"github.com/lysyi3m/lawnmap/app/tasks"
	"github.com/lysyi3m/lawnmap/app/view"
)

type PlaceStore interface {
	UpsertPlace(ctx context.Context, p database.Place) error
	GetPlaces(ctx context.Context, limit int) ([]database.Place, error)
	GetPlaceCount(ctx context.Context) (int, error)
}

type LeadStore interface {
	CreateLead(ctx context.Context, l database.Lead) error
}

type ProposalStore interface {
	CreateProposal(ctx context.Context, p database.Proposal) error
}

type EventLister interface {
	GetEvents(ctx context.Context, limit int) ([]database.Event, error)
}

var (
	_ PlaceStore    = (*database.PlaceRepository)(nil)
	_ LeadStore     = (*database.LeadRepository)(nil)
	_ ProposalStore = (*database.ProposalRepository)(nil)
	_ EventLister   = (*database.EventRepository)(nil)
)

// Deps wires the handler to the rest of the application.
type Deps struct {
	Directory  *view.Directory
	Sessions   *view.Registry
	Catalog    view.Fetcher  // fallback chain used by reload
	Remote     source.Source // upstream GeoJSON for seed and sellers fallback
	Places     PlaceStore
	Leads      LeadStore
	Proposals  ProposalStore
	Events     EventLister
	Scheduler  tasks.TaskSchedulerInterface
	SeedSecret string
	PlacesFile string
	EventsFile string
}

type Handler struct {
	directory  *view.Directory
	categories *catalog.CategoryTable
	sessions   *view.Registry
	catalog    view.Fetcher
	remote     source.Source
	places     PlaceStore
	leads      LeadStore
	proposals  ProposalStore
	events     EventLister
	scheduler  tasks.TaskSchedulerInterface
	seedSecret string
	placesFile string
	eventsFile string
	startedAt  time.Time
}

type itemResponse struct {
	ID           string           `json:"id"`
	Slug         string           `json:"slug"`
	Name         string           `json:"name"`
	Link         string           `json:"link,omitempty"`
	Host         string           `json:"host,omitempty"`
	Categories   []string         `json:"categories"`
	Labels       []string         `json:"labels"`
	Color        string           `json:"color"`
	Icon         string           `json:"icon"`
	Lat          float64          `json:"lat"`
	Lng          float64          `json:"lng"`
	OpenNow      *bool            `json:"open_now,omitempty"`
	LinkOK       *bool            `json:"link_ok,omitempty"`
	Bookable     bool             `json:"bookable"`
	Duplicate    bool             `json:"duplicate"`
	Address      string           `json:"address,omitempty"`
	Addr         *catalog.Address `json:"addr,omitempty"`
	OpeningHours string           `json:"opening_hours,omitempty"`
	DistanceKm   *float64         `json:"distance_km,omitempty"`
}

type placeResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Website      string     `json:"website,omitempty"`
	Address      string     `json:"address,omitempty"`
	Street       string     `json:"street,omitempty"`
	Housenumber  string     `json:"housenumber,omitempty"`
	Postcode     string     `json:"postcode,omitempty"`
	City         string     `json:"city,omitempty"`
	Lat          *float64   `json:"lat"`
	Lon          *float64   `json:"lon"`
	Categories   []string   `json:"categories"`
	Bookable     bool       `json:"bookable"`
	OpeningHours string     `json:"opening_hours,omitempty"`
	LinkOK       *bool      `json:"link_ok,omitempty"`
	Description  string     `json:"description,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

type eventResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Date            *time.Time `json:"date"`
	Location        string     `json:"location,omitempty"`
	Description     string     `json:"description,omitempty"`
	RegistrationURL string     `json:"registrationUrl,omitempty"`
}

// sellerRow is one line of the sellers export.
type sellerRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Website     string   `json:"website"`
	Address     string   `json:"address"`
	Street      string   `json:"street"`
	Housenumber string   `json:"housenumber"`
	Postcode    string   `json:"postcode"`
	City        string   `json:"city"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

type sessionRequest struct {
	Width          *int     `json:"width"`
	Query          *string  `json:"query"`
	FlushSearch    bool     `json:"flush_search"`
	Categories     []string `json:"categories"`
	Toggle         string   `json:"toggle_category"`
	DuplicatesOnly *bool    `json:"duplicates_only"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	Layout         string   `json:"layout"`
	Zoom           *int     `json:"zoom"`
}

type proposalRequest struct {
	Title       any `json:"title"`
	Website     any `json:"website"`
	PriceFrom   any `json:"price_from"`
	Categories  any `json:"categories"`
	Description any `json:"description"`
}
