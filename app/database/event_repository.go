package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type EventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) UpsertEvent(ctx context.Context, e Event) error {
	now := formatTime(time.Now())

	_, err := r.db.exec(ctx, `
		INSERT INTO events (id, name, starts_at, location, description, registration_url, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			starts_at = excluded.starts_at,
			location = excluded.location,
			description = excluded.description,
			registration_url = excluded.registration_url,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at
	`, e.ID, e.Name, formatNullTime(e.StartsAt), nullString(e.Location), nullString(e.Description),
		nullString(e.RegistrationURL), e.SourceURL, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	return nil
}

// GetEvents returns events ordered by start time, undated events last.
func (r *EventRepository) GetEvents(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, name, starts_at, COALESCE(location, ''), COALESCE(description, ''),
			COALESCE(registration_url, ''), source_url, created_at, updated_at
		FROM events
		ORDER BY CASE WHEN starts_at IS NULL THEN 1 ELSE 0 END, starts_at, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                    Event
			startsAt             sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.Name, &startsAt, &e.Location, &e.Description,
			&e.RegistrationURL, &e.SourceURL, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.StartsAt = parseNullTime(startsAt)
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		events = append(events, e)
	}

	return events, rows.Err()
}

func (r *EventRepository) GetEventCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
