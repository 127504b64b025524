package database

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Place struct {
	ID            string
	Name          string
	Website       string
	Address       string
	Street        string
	Housenumber   string
	Postcode      string
	City          string
	Lat           *float64
	Lon           *float64
	Categories    []string
	Bookable      bool
	OpeningHours  string
	LinkOK        *bool
	LinkStatus    int
	WebsiteFinal  string
	LinkCheckedAt *time.Time
	Description   string
	ImageURL      string
	Phone         string
	EnrichedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PlaceLink is the minimal projection used by background checks.
type PlaceLink struct {
	ID      string
	Website string
}

type LinkStatus struct {
	OK         bool
	StatusCode int
	FinalURL   string
	CheckedAt  time.Time
}

type Enrichment struct {
	Title        string
	Description  string
	ImageURL     string
	Phone        string
	OpeningHours string
	EnrichedAt   time.Time
}

type Lead struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Message   string
	PlaceID   string
	Payload   []byte // Raw JSON body as received
	CreatedAt time.Time
}

type Proposal struct {
	ID          string
	Title       string
	Website     string
	PriceFrom   *int
	Categories  []string
	Description string
	CreatedAt   time.Time
}

type Event struct {
	ID              string // Feed item GUID
	Name            string
	StartsAt        *time.Time
	Location        string
	Description     string
	RegistrationURL string
	SourceURL       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
