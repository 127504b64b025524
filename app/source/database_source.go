package source

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/lawnmap/app/database"
)

type PlaceLister interface {
	GetPlaces(ctx context.Context, limit int) ([]database.Place, error)
}

// DatabaseSource renders stored places as a FeatureCollection. open_now is
// evaluated at fetch time from the stored opening hours.
type DatabaseSource struct {
	places   PlaceLister
	location *time.Location
	now      func() time.Time
}

func NewDatabaseSource(places PlaceLister, location *time.Location) *DatabaseSource {
	if location == nil {
		location = time.Local
	}
	return &DatabaseSource{
		places:   places,
		location: location,
		now:      time.Now,
	}
}

func (s *DatabaseSource) Name() string {
	return "database"
}

func (s *DatabaseSource) Fetch(ctx context.Context) ([]byte, error) {
	places, err := s.places.GetPlaces(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load places: %w", err)
	}
	if len(places) == 0 {
		return nil, ErrEmptyCatalog
	}

	return PlacesToFeatureCollection(places, s.now().In(s.location))
}
