package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/lysyi3m/lawnmap/app/catalog"
	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/tasks"
	"github.com/lysyi3m/lawnmap/app/view"
)

const (
	listingsLimit   = 500
	defaultQRSize   = 256
	defaultViewSize = 1200
)

var errBadPosition = errors.New("lat and lon must both be valid coordinates")

func NewHandler(deps Deps) *Handler {
	return &Handler{
		directory:  deps.Directory,
		categories: deps.Directory.Categories(),
		sessions:   deps.Sessions,
		catalog:    deps.Catalog,
		remote:     deps.Remote,
		places:     deps.Places,
		leads:      deps.Leads,
		proposals:  deps.Proposals,
		events:     deps.Events,
		scheduler:  deps.Scheduler,
		seedSecret: deps.SeedSecret,
		placesFile: deps.PlacesFile,
		eventsFile: deps.EventsFile,
		startedAt:  time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	status := h.directory.Status()

	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"catalog": map[string]interface{}{
			"source":    status.Source,
			"items":     h.directory.Store().Len(),
			"stats":     status.Stats,
			"error":     status.Error,
			"loaded_at": status.LoadedAt,
		},
		"sessions":   h.sessions.Len(),
		"categories": len(h.categories.Keys()),
	}

	if h.places != nil {
		if count, err := h.places.GetPlaceCount(c.Request.Context()); err == nil {
			health["places"] = count
		}
	}

	c.JSON(http.StatusOK, health)
}

// GetData serves the catalog GeoJSON, the stored places or the events.
func (h *Handler) GetData(c *gin.Context) {
	switch c.DefaultQuery("kind", "geojson") {
	case "places":
		h.getPlacesData(c)
	case "events":
		h.getEventsData(c)
	default:
		c.Data(http.StatusOK, "application/json; charset=utf-8", h.directory.Payload())
	}
}

func (h *Handler) getPlacesData(c *gin.Context) {
	if h.places != nil {
		places, err := h.places.GetPlaces(c.Request.Context(), 0)
		if err != nil {
			slog.Error("Database error", "operation", "get_places", "error", err)
		} else if len(places) > 0 {
			c.JSON(http.StatusOK, toPlaceResponses(places))
			return
		}
	}
	h.serveFile(c, h.placesFile)
}

func (h *Handler) getEventsData(c *gin.Context) {
	if h.events != nil {
		events, err := h.events.GetEvents(c.Request.Context(), 0)
		if err != nil {
			slog.Error("Database error", "operation", "get_events", "error", err)
		} else if len(events) > 0 {
			out := make([]eventResponse, 0, len(events))
			for _, e := range events {
				out = append(out, eventResponse{
					ID:              e.ID,
					Name:            e.Name,
					Date:            e.StartsAt,
					Location:        e.Location,
					Description:     e.Description,
					RegistrationURL: e.RegistrationURL,
				})
			}
			c.JSON(http.StatusOK, out)
			return
		}
	}
	h.serveFile(c, h.eventsFile)
}

func (h *Handler) serveFile(c *gin.Context, path string) {
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("Data file not readable", "path", path, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (h *Handler) GetListings(c *gin.Context) {
	places, err := h.places.GetPlaces(c.Request.Context(), listingsLimit)
	if err != nil {
		slog.Error("Database error", "operation", "get_listings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": toPlaceResponses(places)})
}

func (h *Handler) CreateListing(c *gin.Context) {
	c.String(http.StatusNotImplemented, "Not Implemented")
}

// SearchPlaces runs the filter engine for the query parameters.
func (h *Handler) SearchPlaces(c *gin.Context) {
	state, err := h.filterStateFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := h.directory.Store().Current()
	matches := h.directory.Filterer().Run(snap.Items(), snap, state)

	items := make([]itemResponse, 0, len(matches))
	for _, m := range matches {
		resp := h.toItemResponse(m.Item, snap)
		if m.HasDistance {
			d := m.DistanceKm
			resp.DistanceKm = &d
		}
		items = append(items, resp)
	}

	c.JSON(http.StatusOK, gin.H{
		"header": view.Header(len(matches), state),
		"items":  items,
		"total":  snap.Len(),
	})
}

func (h *Handler) GetPlace(c *gin.Context) {
	id := c.Param("id")
	snap := h.directory.Store().Current()

	item, ok := snap.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Place not found"})
		return
	}

	c.JSON(http.StatusOK, h.toItemResponse(item, snap))
}

// GetPlaceQR renders the place link as a PNG QR code.
func (h *Handler) GetPlaceQR(c *gin.Context) {
	id := c.Param("id")

	item, ok := h.directory.Store().Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Place not found"})
		return
	}
	if item.Link == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Place has no link"})
		return
	}

	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 64 and 1024"})
			return
		}
		size = n
	}

	png, err := qrcode.Encode(item.Link, qrcode.Medium, size)
	if err != nil {
		slog.Error("QR generation error", "place_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// GetView renders list, map and details for a filter state without a session.
func (h *Handler) GetView(c *gin.Context) {
	state, err := h.filterStateFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	width, err := intQuery(c, "width", defaultViewSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width must be an integer"})
		return
	}
	zoom, err := intQuery(c, "zoom", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "zoom must be an integer"})
		return
	}

	c.JSON(http.StatusOK, h.directory.Render(state, width, zoom))
}

func (h *Handler) ReloadCatalog(c *gin.Context) {
	task := tasks.NewRefreshCatalogTask(h.directory, h.catalog)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing catalog refresh", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue catalog refresh",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}

// filterStateFromQuery reads q, cats, dupes, lat and lon. A missing cats
// parameter activates every category; an empty one activates none.
func (h *Handler) filterStateFromQuery(c *gin.Context) (catalog.FilterState, error) {
	state := h.directory.DefaultFilterState()

	if cats, ok := c.GetQuery("cats"); ok {
		state.Active = make(map[string]bool)
		for _, key := range strings.Split(cats, ",") {
			if key = strings.TrimSpace(key); key != "" {
				state.Active[key] = true
			}
		}
	}

	state.Query = catalog.NormalizeQuery(c.Query("q"))
	state.DuplicatesOnly = parseBool(c.Query("dupes"))

	rawLat, hasLat := c.GetQuery("lat")
	rawLon, hasLon := c.GetQuery("lon")
	if hasLat || hasLon {
		lat, errLat := strconv.ParseFloat(rawLat, 64)
		lon, errLon := strconv.ParseFloat(rawLon, 64)
		pos := catalog.Position{Lat: lat, Lon: lon}
		if errLat != nil || errLon != nil || !pos.Valid() {
			return state, errBadPosition
		}
		state.UserPos = &pos
	}

	return state, nil
}

func (h *Handler) toItemResponse(item catalog.Item, dupes catalog.DuplicateCounter) itemResponse {
	resp := itemResponse{
		ID:           item.ID,
		Slug:         catalog.Slugify(item.ID),
		Name:         item.Name,
		Link:         item.Link,
		Host:         catalog.SiteHost(item.SiteKey),
		Categories:   item.Categories,
		Labels:       make([]string, 0, len(item.Categories)),
		Lat:          item.Lat,
		Lng:          item.Lng,
		OpenNow:      item.OpenNow,
		LinkOK:       item.LinkOK,
		Bookable:     item.Bookable,
		Duplicate:    item.SiteKey != "" && dupes.DuplicateCount(item.SiteKey) > 1,
		Address:      item.Address,
		OpeningHours: item.OpeningHours,
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	for _, key := range item.Categories {
		resp.Labels = append(resp.Labels, h.categories.Label(key))
	}

	primary := h.categories.Lookup(item.PrimaryCategory())
	resp.Color = primary.Color
	resp.Icon = h.categories.IconURL(item.PrimaryCategory())

	if !item.Addr.IsZero() {
		addr := item.Addr
		resp.Addr = &addr
	}
	return resp
}

func toPlaceResponses(places []database.Place) []placeResponse {
	out := make([]placeResponse, 0, len(places))
	for _, p := range places {
		updated := p.UpdatedAt
		out = append(out, placeResponse{
			ID:           p.ID,
			Name:         p.Name,
			Website:      p.Website,
			Address:      p.Address,
			Street:       p.Street,
			Housenumber:  p.Housenumber,
			Postcode:     p.Postcode,
			City:         p.City,
			Lat:          p.Lat,
			Lon:          p.Lon,
			Categories:   nonNilStrings(p.Categories),
			Bookable:     p.Bookable,
			OpeningHours: p.OpeningHours,
			LinkOK:       p.LinkOK,
			Description:  p.Description,
			ImageURL:     p.ImageURL,
			Phone:        p.Phone,
			UpdatedAt:    &updated,
		})
	}
	return out
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
