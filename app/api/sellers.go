package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/lawnmap/app/database"
	"github.com/lysyi3m/lawnmap/app/source"
	"github.com/lysyi3m/lawnmap/app/tasks"
)

const sellersLimit = 20000

var sellerCSVHeader = []string{"id", "name", "website", "address", "street", "housenumber", "postcode", "city", "lat", "lon"}

// GetSellers exports the sellers from the database, falling back to the
// upstream GeoJSON when the database has nothing to offer.
func (h *Handler) GetSellers(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	ctx := c.Request.Context()

	rows, err := h.sellersFromDatabase(ctx)
	if err != nil || len(rows) == 0 {
		if err != nil {
			slog.Warn("Sellers unavailable from database", "error", err)
		}
		rows, err = h.sellersFromRemote(ctx)
		if err != nil {
			slog.Error("Sellers unavailable from remote", "error", err)
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not_found"})
			return
		}
	}

	if format == "csv" {
		data, err := sellersCSV(rows)
		if err != nil {
			slog.Error("CSV generation error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "csv_failed"})
			return
		}
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "rows": rows})
}

func (h *Handler) sellersFromDatabase(ctx context.Context) ([]sellerRow, error) {
	if h.places == nil {
		return nil, nil
	}
	places, err := h.places.GetPlaces(ctx, sellersLimit)
	if err != nil {
		return nil, err
	}
	return toSellerRows(places), nil
}

func (h *Handler) sellersFromRemote(ctx context.Context) ([]sellerRow, error) {
	if h.remote == nil {
		return nil, fmt.Errorf("no remote catalog configured")
	}
	data, err := h.remote.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	places, err := source.PlacesFromCollection(data)
	if err != nil {
		return nil, err
	}
	return toSellerRows(places), nil
}

func toSellerRows(places []database.Place) []sellerRow {
	rows := make([]sellerRow, 0, len(places))
	for _, p := range places {
		rows = append(rows, sellerRow{
			ID:          p.ID,
			Name:        p.Name,
			Website:     p.Website,
			Address:     p.Address,
			Street:      p.Street,
			Housenumber: p.Housenumber,
			Postcode:    p.Postcode,
			City:        p.City,
			Lat:         p.Lat,
			Lon:         p.Lon,
		})
	}
	return rows
}

func sellersCSV(rows []sellerRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(sellerCSVHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{r.ID, r.Name, r.Website, r.Address, r.Street, r.Housenumber, r.Postcode, r.City,
			formatCoord(r.Lat), formatCoord(r.Lon)}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCoord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// SeedPlaces copies the upstream GeoJSON into the places table.
func (h *Handler) SeedPlaces(c *gin.Context) {
	if h.seedSecret == "" || c.Query("secret") != h.seedSecret {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "forbidden"})
		return
	}

	ctx := c.Request.Context()

	data, err := h.remote.Fetch(ctx)
	if err != nil {
		slog.Error("Seed fetch failed", "source", h.remote.Name(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "fetch_failed"})
		return
	}

	inserted, err := source.SeedPlaces(ctx, data, h.places)
	if err != nil {
		slog.Error("Seed failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": "fetch_failed"})
		return
	}

	slog.Info("Places seeded", "inserted", inserted)

	if h.scheduler != nil && h.catalog != nil {
		if err := h.scheduler.EnqueueTask(tasks.NewRefreshCatalogTask(h.directory, h.catalog)); err != nil {
			slog.Warn("Failed to enqueue catalog refresh after seed", "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "inserted": inserted})
}
