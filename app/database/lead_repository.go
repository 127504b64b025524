package database

import (
	"context"
	"fmt"
	"time"
)

type LeadRepository struct {
	db *DB
}

func NewLeadRepository(db *DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) CreateLead(ctx context.Context, l Lead) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	payload := l.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := r.db.exec(ctx, `
		INSERT INTO leads (id, name, email, phone, message, place_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, nullString(l.Name), nullString(l.Email), nullString(l.Phone),
		nullString(l.Message), nullString(l.PlaceID), string(payload), formatTime(l.CreatedAt))

	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	return nil
}

func (r *LeadRepository) GetLeadCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}
