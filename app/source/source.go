package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/lawnmap/app/catalog"
)

// ErrEmptyCatalog is returned by sources that are reachable but hold no places.
var ErrEmptyCatalog = errors.New("catalog is empty")

// Source produces GeoJSON FeatureCollection bytes.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

type Result struct {
	Data   []byte
	Source string
}

// Chain tries each source in order and returns the first success.
type Chain struct {
	sources []Source
}

func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Fetch makes one attempt per source. A source whose payload is not a
// feature collection counts as failed. Each failure is logged; when all
// fail the joined error is returned.
func (c *Chain) Fetch(ctx context.Context) (Result, error) {
	if len(c.sources) == 0 {
		return Result{}, errors.New("no catalog sources configured")
	}

	var errs []error
	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		data, err := s.Fetch(ctx)
		if err == nil {
			err = catalog.ValidateCollection(data)
		}
		if err == nil {
			return Result{Data: data, Source: s.Name()}, nil
		}

		slog.Warn("Catalog source failed", "source", s.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}

	return Result{}, errors.Join(errs...)
}
