package tasks

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/source"
)

const enrichFetchTimeout = 12 * time.Second

var phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}`)

// EnrichPlacesTask reads OpenGraph, Twitter and schema.org metadata from
// place websites that were never enriched.
type EnrichPlacesTask struct {
	Task
	store      EnrichmentStore
	httpClient *http.Client
	userAgent  string
	maxItems   int
}

func NewEnrichPlacesTask(store EnrichmentStore, httpClient *http.Client, userAgent string, maxItems int) *EnrichPlacesTask {
	return &EnrichPlacesTask{
		Task:       NewTask(TaskTypeEnrichPlaces, "places"),
		store:      store,
		httpClient: httpClient,
		userAgent:  userAgent,
		maxItems:   maxItems,
	}
}

func (t *EnrichPlacesTask) Execute(ctx context.Context) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	links, err := t.store.GetPlacesForEnrichment(ctx, t.maxItems)
	if err != nil {
		return fmt.Errorf("failed to get places for enrichment: %w", err)
	}

	if len(links) == 0 {
		slog.Debug("No places need enrichment")
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, link := range links {
		if err := checkCancelled(ctx); err != nil {
			return err
		}

		enrichment, err := t.enrichPlace(ctx, link)
		if err != nil {
			slog.Debug("Failed to enrich place", "place_id", link.ID, "url", link.Website, "error", err)
			errorCount++
			// Mark the attempt so the place does not block later runs
			enrichment = database.Enrichment{}
		} else {
			successCount++
		}

		enrichment.EnrichedAt = time.Now().UTC()
		if err := t.store.UpdateEnrichment(ctx, link.ID, enrichment); err != nil {
			slog.Error("Failed to store enrichment", "place_id", link.ID, "error", err)
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *EnrichPlacesTask) enrichPlace(ctx context.Context, link database.PlaceLink) (database.Enrichment, error) {
	data, err := source.FetchURL(ctx, t.httpClient, link.Website, t.userAgent, enrichFetchTimeout)
	if err != nil {
		return database.Enrichment{}, fmt.Errorf("failed to fetch page: %w", err)
	}

	return ExtractMetadata(data)
}

// ExtractMetadata pulls title, description, image, opening hours and the
// first phone-like string out of an HTML page. The title is used as the
// description when the page has none.
func ExtractMetadata(data []byte) (database.Enrichment, error) {
	if len(data) == 0 {
		return database.Enrichment{}, fmt.Errorf("HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return database.Enrichment{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	e := database.Enrichment{
		Title: cmp.Or(
			firstAttr(doc, "content", `meta[property="og:title"]`, `meta[name="twitter:title"]`),
			firstText(doc, "title", "h1"),
		),
		Description: firstAttr(doc, "content",
			`meta[property="og:description"]`, `meta[name="description"]`, `meta[name="twitter:description"]`),
		ImageURL: firstAttr(doc, "content", `meta[property="og:image"]`, `meta[name="twitter:image"]`),
	}
	if e.Description == "" {
		e.Description = e.Title
	}

	doc.Find(`[itemprop="openingHours"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			text, _ = s.Attr("content")
			text = strings.TrimSpace(text)
		}
		e.OpeningHours = text
		return text == ""
	})

	doc.Find("script, style").Remove()
	body := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if m := phonePattern.FindString(body); m != "" {
		e.Phone = strings.TrimSpace(m)
	}

	return e, nil
}

func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}
