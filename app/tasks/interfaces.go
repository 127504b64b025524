package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/view"
)

// TaskSchedulerInterface is what the application and the API need from the
// scheduler.
//
//	scheduler := NewScheduler(workerCount, interval)
//	scheduler.Register(Job{Type: TaskTypeCheckLinks, Interval: time.Hour, New: ...})
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRefreshCatalogTask(dir, chain))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Register(job Job)
	EnqueueTask(task TaskInterface) error
}

// CatalogReloader is satisfied by *view.Directory.
type CatalogReloader interface {
	Reload(ctx context.Context, fetcher view.Fetcher) (view.ReloadStatus, error)
}

type LinkStore interface {
	GetPlacesForLinkCheck(ctx context.Context, checkedBefore time.Time, limit int) ([]database.PlaceLink, error)
	UpdateLinkStatus(ctx context.Context, placeID string, status database.LinkStatus) error
}

type EnrichmentStore interface {
	GetPlacesForEnrichment(ctx context.Context, limit int) ([]database.PlaceLink, error)
	UpdateEnrichment(ctx context.Context, placeID string, e database.Enrichment) error
}

type EventStore interface {
	UpsertEvent(ctx context.Context, e database.Event) error
}

// SessionSweeper is satisfied by *view.Registry.
type SessionSweeper interface {
	Sweep(idle time.Duration) int
}
