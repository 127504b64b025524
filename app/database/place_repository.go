package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const placeColumns = `id, name, COALESCE(website, ''), COALESCE(address, ''), COALESCE(street, ''),
	COALESCE(housenumber, ''), COALESCE(postcode, ''), COALESCE(city, ''), lat, lon,
	categories, bookable, COALESCE(opening_hours, ''), link_ok, link_status,
	COALESCE(website_final, ''), link_checked_at, COALESCE(description, ''),
	COALESCE(image_url, ''), COALESCE(phone, ''), enriched_at, created_at, updated_at`

// PlaceRepository handles database operations for places
type PlaceRepository struct {
	db *DB
}

func NewPlaceRepository(db *DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

// UpsertPlace inserts a place or refreshes its catalog fields. Link check
// and enrichment results are preserved.
func (r *PlaceRepository) UpsertPlace(ctx context.Context, p Place) error {
	categories, err := json.Marshal(nonNilStrings(p.Categories))
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	now := formatTime(time.Now())

	_, err = r.db.exec(ctx, `
		INSERT INTO places (
			id, name, website, address, street, housenumber, postcode, city,
			lat, lon, categories, bookable, opening_hours, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			website = excluded.website,
			address = excluded.address,
			street = excluded.street,
			housenumber = excluded.housenumber,
			postcode = excluded.postcode,
			city = excluded.city,
			lat = excluded.lat,
			lon = excluded.lon,
			categories = excluded.categories,
			bookable = excluded.bookable,
			opening_hours = COALESCE(excluded.opening_hours, places.opening_hours),
			updated_at = excluded.updated_at
	`, p.ID, p.Name, nullString(p.Website), nullString(p.Address), nullString(p.Street),
		nullString(p.Housenumber), nullString(p.Postcode), nullString(p.City),
		nullFloat(p.Lat), nullFloat(p.Lon), string(categories), p.Bookable,
		nullString(p.OpeningHours), now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert place: %w", err)
	}

	return nil
}

// GetPlaces returns places ordered by id. A non-positive limit returns all.
func (r *PlaceRepository) GetPlaces(ctx context.Context, limit int) ([]Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get places: %w", err)
	}
	defer rows.Close()

	var places []Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, *p)
	}

	return places, rows.Err()
}

// GetPlace returns ErrNotFound for an unknown id.
func (r *PlaceRepository) GetPlace(ctx context.Context, id string) (*Place, error) {
	row := r.db.queryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE id = ?`, id)

	p, err := scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	return p, nil
}

func (r *PlaceRepository) GetPlaceCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM places`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count places: %w", err)
	}
	return count, nil
}

// GetPlacesForLinkCheck returns places with a website that were never
// checked or last checked before the given time, oldest first.
func (r *PlaceRepository) GetPlacesForLinkCheck(ctx context.Context, checkedBefore time.Time, limit int) ([]PlaceLink, error) {
	return r.getPlaceLinks(ctx, `
		SELECT id, website FROM places
		WHERE website IS NOT NULL AND website <> ''
		  AND (link_checked_at IS NULL OR link_checked_at < ?)
		ORDER BY COALESCE(link_checked_at, ''), id
		LIMIT ?
	`, formatTime(checkedBefore), limit)
}

func (r *PlaceRepository) UpdateLinkStatus(ctx context.Context, placeID string, status LinkStatus) error {
	_, err := r.db.exec(ctx, `
		UPDATE places
		SET link_ok = ?, link_status = ?, website_final = ?, link_checked_at = ?, updated_at = ?
		WHERE id = ?
	`, status.OK, status.StatusCode, nullString(status.FinalURL), formatTime(status.CheckedAt),
		formatTime(time.Now()), placeID)

	if err != nil {
		return fmt.Errorf("failed to update link status: %w", err)
	}

	return nil
}

// GetPlacesForEnrichment returns places with a website that were never enriched.
func (r *PlaceRepository) GetPlacesForEnrichment(ctx context.Context, limit int) ([]PlaceLink, error) {
	return r.getPlaceLinks(ctx, `
		SELECT id, COALESCE(NULLIF(website_final, ''), website) FROM places
		WHERE website IS NOT NULL AND website <> '' AND enriched_at IS NULL
		ORDER BY id
		LIMIT ?
	`, limit)
}

// UpdateEnrichment stores extracted metadata. Existing opening hours are
// never overwritten.
func (r *PlaceRepository) UpdateEnrichment(ctx context.Context, placeID string, e Enrichment) error {
	_, err := r.db.exec(ctx, `
		UPDATE places
		SET description = COALESCE(?, description),
			image_url = COALESCE(?, image_url),
			phone = COALESCE(?, phone),
			opening_hours = COALESCE(NULLIF(opening_hours, ''), ?),
			enriched_at = ?,
			updated_at = ?
		WHERE id = ?
	`, nullString(e.Description), nullString(e.ImageURL), nullString(e.Phone),
		nullString(e.OpeningHours), formatTime(e.EnrichedAt), formatTime(time.Now()), placeID)

	if err != nil {
		return fmt.Errorf("failed to update enrichment: %w", err)
	}

	return nil
}

func (r *PlaceRepository) getPlaceLinks(ctx context.Context, query string, args ...any) ([]PlaceLink, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get place links: %w", err)
	}
	defer rows.Close()

	var links []PlaceLink
	for rows.Next() {
		var l PlaceLink
		if err := rows.Scan(&l.ID, &l.Website); err != nil {
			return nil, fmt.Errorf("failed to scan place link: %w", err)
		}
		links = append(links, l)
	}

	return links, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(s rowScanner) (*Place, error) {
	var (
		p             Place
		lat, lon      sql.NullFloat64
		categories    string
		linkOK        sql.NullBool
		linkCheckedAt sql.NullString
		enrichedAt    sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := s.Scan(
		&p.ID, &p.Name, &p.Website, &p.Address, &p.Street,
		&p.Housenumber, &p.Postcode, &p.City, &lat, &lon,
		&categories, &p.Bookable, &p.OpeningHours, &linkOK, &p.LinkStatus,
		&p.WebsiteFinal, &linkCheckedAt, &p.Description,
		&p.ImageURL, &p.Phone, &enrichedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		p.Lat = &lat.Float64
	}
	if lon.Valid {
		p.Lon = &lon.Float64
	}
	if linkOK.Valid {
		p.LinkOK = &linkOK.Bool
	}
	if categories != "" {
		if err := json.Unmarshal([]byte(categories), &p.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
	}
	p.LinkCheckedAt = parseNullTime(linkCheckedAt)
	p.EnrichedAt = parseNullTime(enrichedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	return &p, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
