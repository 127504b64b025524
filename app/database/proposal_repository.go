package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type ProposalRepository struct {
	db *DB
}

func NewProposalRepository(db *DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) CreateProposal(ctx context.Context, p Proposal) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	categories, err := json.Marshal(nonNilStrings(p.Categories))
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	var price sql.NullInt64
	if p.PriceFrom != nil {
		price = sql.NullInt64{Int64: int64(*p.PriceFrom), Valid: true}
	}

	_, err = r.db.exec(ctx, `
		INSERT INTO proposals (id, title, website, price_from, categories, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Website, price, string(categories), nullString(p.Description), formatTime(p.CreatedAt))

	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	return nil
}

func (r *ProposalRepository) GetProposal(ctx context.Context, id string) (*Proposal, error) {
	var (
		p          Proposal
		price      sql.NullInt64
		categories string
		createdAt  string
	)

	err := r.db.queryRow(ctx, `
		SELECT id, title, website, price_from, categories, COALESCE(description, ''), created_at
		FROM proposals WHERE id = ?
	`, id).Scan(&p.ID, &p.Title, &p.Website, &price, &categories, &p.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	if price.Valid {
		v := int(price.Int64)
		p.PriceFrom = &v
	}
	if err := json.Unmarshal([]byte(categories), &p.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)

	return &p, nil
}
