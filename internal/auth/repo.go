package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
)

// Repository loads API tokens from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByID fetches an active token by its public identifier.
func (r *Repository) FindByID(ctx context.Context, id string) (*Token, error) {
	var t Token
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, token_hash, admin, active, created_at
		FROM api_tokens
		WHERE id = $1 AND active`, id).
		Scan(&t.ID, &t.Name, &t.Hash, &t.Admin, &t.Active, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrUnauthorized
		}
		return nil, err
	}
	return &t, nil
}
