package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/lawnmap/app/view"
)

// RefreshCatalogTask reloads the shared catalog through the fallback chain.
// It never retries; the next periodic run is the re-attempt.
type RefreshCatalogTask struct {
	Task
	directory CatalogReloader
	fetcher   view.Fetcher
}

func NewRefreshCatalogTask(directory CatalogReloader, fetcher view.Fetcher) *RefreshCatalogTask {
	task := NewTask(TaskTypeRefreshCatalog, "catalog")
	task.MaxRetries = 0

	return &RefreshCatalogTask{
		Task:      task,
		directory: directory,
		fetcher:   fetcher,
	}
}

func (t *RefreshCatalogTask) Execute(ctx context.Context) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	status, err := t.directory.Reload(ctx, t.fetcher)
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"source", status.Source,
		"loaded", status.Stats.Loaded,
		"skipped", status.Stats.Skipped)

	return nil
}
