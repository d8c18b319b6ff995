// Package companies provides PostgreSQL-backed storage for company metadata.
// The collector uses it to resolve a tax ID into the display name that labels
// output directories; everything else is operator bookkeeping.
package companies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Company is one registered company.
type Company struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	TaxID     string     `json:"tax_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Schema for reference:
//
//	CREATE TABLE companies (
//	    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//	    name       TEXT NOT NULL,
//	    tax_id     CHAR(14) NOT NULL UNIQUE,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at TIMESTAMPTZ
//	);

// Repo wraps a PostgreSQL connection pool.
type Repo struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*Repo, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Create registers a company and returns its ID.
func (r *Repo) Create(ctx context.Context, name, taxID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO companies (name, tax_id)
		 VALUES ($1, $2)
		 ON CONFLICT (tax_id) DO UPDATE SET name = $1, updated_at = NOW()
		 RETURNING id`,
		name, taxID,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create company: %w", err)
	}
	return id, nil
}

// GetByID retrieves a company by its UUID. Returns nil when not found.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*Company, error) {
	return r.get(ctx,
		`SELECT id, name, tax_id, created_at, updated_at FROM companies WHERE id = $1`, id)
}

// GetByTaxID retrieves a company by its 14-digit tax ID. Returns nil when not
// found.
func (r *Repo) GetByTaxID(ctx context.Context, taxID string) (*Company, error) {
	return r.get(ctx,
		`SELECT id, name, tax_id, created_at, updated_at FROM companies WHERE tax_id = $1`, taxID)
}

func (r *Repo) get(ctx context.Context, query string, arg any) (*Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&c.ID, &c.Name, &c.TaxID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// List retrieves registered companies ordered by name.
func (r *Repo) List(ctx context.Context, limit int) ([]Company, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, tax_id, created_at, updated_at
		 FROM companies ORDER BY name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a company by ID.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("company not found: %s", id)
	}
	return nil
}

// CompanyName resolves a tax ID into the company's display name. It satisfies
// the orchestrator's directory interface; an unknown tax ID is not an error,
// only an empty name.
func (r *Repo) CompanyName(ctx context.Context, taxID string) (string, error) {
	c, err := r.GetByTaxID(ctx, taxID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", nil
	}
	return c.Name, nil
}
