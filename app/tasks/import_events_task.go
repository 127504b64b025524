package tasks

import (
	"bytes"
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/source"
)

const (
	eventFetchTimeout = 30 * time.Second
	defaultEventName  = "Evenemang"
	defaultLocation   = "Sverige"
)

// ImportEventsTask imports RSS/Atom entries of the configured feeds as
// events. A failing feed does not stop the others.
type ImportEventsTask struct {
	Task
	store      EventStore
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	feedURLs   []string
}

func NewImportEventsTask(store EventStore, httpClient *http.Client, userAgent string, feedURLs []string) *ImportEventsTask {
	return &ImportEventsTask{
		Task:       NewTask(TaskTypeImportEvents, strings.Join(feedURLs, ",")),
		store:      store,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		feedURLs:   feedURLs,
	}
}

func (t *ImportEventsTask) Execute(ctx context.Context) error {
	var errs []error
	imported := 0

	for _, url := range t.feedURLs {
		if err := checkCancelled(ctx); err != nil {
			return err
		}

		n, err := t.importFeed(ctx, url)
		imported += n
		if err != nil {
			slog.Warn("Failed to import event feed", "url", url, "error", err)
			errs = append(errs, err)
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"feeds", len(t.feedURLs),
		"imported", imported,
		"errors", len(errs))

	if len(errs) > 0 && len(errs) == len(t.feedURLs) {
		return fmt.Errorf("all event feeds failed: %w", errors.Join(errs...))
	}
	return nil
}

func (t *ImportEventsTask) importFeed(ctx context.Context, url string) (int, error) {
	data, err := source.FetchURL(ctx, t.httpClient, url, t.userAgent, eventFetchTimeout)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := t.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to parse feed: %w", err)
	}

	imported := 0
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if err := t.store.UpsertEvent(ctx, EventFromItem(item, url)); err != nil {
			return imported, fmt.Errorf("failed to store event: %w", err)
		}
		imported++
	}

	return imported, nil
}

// EventFromItem maps a feed entry to an event. The id is the entry GUID,
// else its link, else a hash of the feed URL and title.
func EventFromItem(item *gofeed.Item, feedURL string) database.Event {
	title := strings.TrimSpace(item.Title)

	id := cmp.Or(strings.TrimSpace(item.GUID), strings.TrimSpace(item.Link))
	if id == "" {
		hash := sha256.Sum256([]byte(feedURL + "|" + title))
		id = hex.EncodeToString(hash[:])
	}

	startsAt := item.PublishedParsed
	if startsAt == nil {
		startsAt = item.UpdatedParsed
	}

	location := defaultLocation
	if len(item.Categories) > 0 && strings.TrimSpace(item.Categories[0]) != "" {
		location = strings.TrimSpace(item.Categories[0])
	}

	return database.Event{
		ID:              id,
		Name:            cmp.Or(title, defaultEventName),
		StartsAt:        startsAt,
		Location:        location,
		Description:     strings.TrimSpace(item.Description),
		RegistrationURL: strings.TrimSpace(item.Link),
		SourceURL:       feedURL,
	}
}
