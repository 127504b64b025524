package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/lawnmap/app/database"
)

const linkCheckTimeout = 10 * time.Second

// CheckLinksTask verifies place websites that were never checked or are
// older than the recheck interval.
type CheckLinksTask struct {
	Task
	store       LinkStore
	httpClient  *http.Client
	userAgent   string
	maxItems    int
	concurrency int
	recheck     time.Duration
}

func NewCheckLinksTask(store LinkStore, httpClient *http.Client, userAgent string, maxItems, concurrency int, recheck time.Duration) *CheckLinksTask {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &CheckLinksTask{
		Task:        NewTask(TaskTypeCheckLinks, "places"),
		store:       store,
		httpClient:  httpClient,
		userAgent:   userAgent,
		maxItems:    maxItems,
		concurrency: concurrency,
		recheck:     recheck,
	}
}

func (t *CheckLinksTask) Execute(ctx context.Context) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	links, err := t.store.GetPlacesForLinkCheck(ctx, time.Now().Add(-t.recheck), t.maxItems)
	if err != nil {
		return fmt.Errorf("failed to get places for link check: %w", err)
	}

	if len(links) == 0 {
		slog.Debug("No places need a link check")
		return nil
	}

	var okCount, brokenCount, errorCount atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for _, link := range links {
		g.Go(func() error {
			if err := checkCancelled(gctx); err != nil {
				return err
			}

			status := CheckLink(gctx, t.httpClient, link.Website, t.userAgent)
			if status.OK {
				okCount.Add(1)
			} else {
				brokenCount.Add(1)
			}

			if err := t.store.UpdateLinkStatus(gctx, link.ID, status); err != nil {
				slog.Error("Failed to update link status", "place_id", link.ID, "error", err)
				errorCount.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"checked", len(links),
		"ok", okCount.Load(),
		"broken", brokenCount.Load(),
		"errors", errorCount.Load())

	return nil
}

// CheckLink tries HEAD first and falls back to GET. Redirects are followed;
// the link is ok when the final status is 200-399.
func CheckLink(ctx context.Context, client *http.Client, url, userAgent string) database.LinkStatus {
	status := database.LinkStatus{CheckedAt: time.Now().UTC()}

	if code, final, err := probe(ctx, client, http.MethodHead, url, userAgent); err == nil {
		status.StatusCode = code
		status.FinalURL = final
		if code >= 200 && code < 400 {
			status.OK = true
			return status
		}
	}

	code, final, err := probe(ctx, client, http.MethodGet, url, userAgent)
	if err != nil {
		slog.Debug("Link check failed", "url", url, "error", err)
		return status
	}
	status.StatusCode = code
	status.FinalURL = final
	status.OK = code >= 200 && code < 400
	return status
}

func probe(ctx context.Context, client *http.Client, method, url, userAgent string) (int, string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	reqCtx, cancel := context.WithTimeout(ctx, linkCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, resp.Request.URL.String(), nil
}
