// Package orgs resolves the organization addressed by a request.
package orgs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository looks organizations up by slug.
type Repository interface {
	FindBySlug(ctx context.Context, slug string) (shared.Org, error)
	List(ctx context.Context) ([]shared.Org, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (shared.Org, error) {
	var org shared.Org
	err := r.pool.QueryRow(ctx, `SELECT id, slug, name FROM orgs WHERE slug = $1`, strings.ToLower(slug)).
		Scan(&org.ID, &org.Slug, &org.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.Org{}, shared.ErrNotFound
	}
	return org, err
}

func (r *repository) List(ctx context.Context) ([]shared.Org, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name FROM orgs ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []shared.Org
	for rows.Next() {
		var org shared.Org
		if err := rows.Scan(&org.ID, &org.Slug, &org.Name); err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}
