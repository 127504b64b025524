package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/lawnmap/app/database"
)

type PlaceUpserter interface {
	UpsertPlace(ctx context.Context, p database.Place) error
}

// SeedPlaces upserts every place in the collection and returns how many
// rows were written. Individual failures are logged and skipped.
func SeedPlaces(ctx context.Context, data []byte, repo PlaceUpserter) (int, error) {
	places, err := PlacesFromCollection(data)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, p := range places {
		if err := ctx.Err(); err != nil {
			return inserted, fmt.Errorf("seed interrupted: %w", err)
		}
		if err := repo.UpsertPlace(ctx, p); err != nil {
			slog.Warn("Failed to seed place", "id", p.ID, "error", err)
			continue
		}
		inserted++
	}

	return inserted, nil
}
