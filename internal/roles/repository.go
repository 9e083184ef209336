package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	pgconn5 "github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-fm/gatehouse/internal/platform/db"
	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for the role catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles with their direct implications, ordered by key.
func (r *Repository) ListRoles(ctx context.Context, partition string) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, key, name, partition, created_at, updated_at
		FROM roles
		WHERE ($1 = '' OR partition = $1)
		ORDER BY key`, partition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Role
	index := make(map[int64]int)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Key, &role.Name, &role.Partition, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Implies = []string{}
		index[role.ID] = len(out)
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	impRows, err := r.pool.Query(ctx, `
		SELECT ri.role_id, t.key
		FROM role_implications ri
		JOIN roles t ON t.id = ri.implied_role_id
		ORDER BY ri.role_id, t.key`)
	if err != nil {
		return nil, err
	}
	defer impRows.Close()
	for impRows.Next() {
		var roleID int64
		var implied string
		if err := impRows.Scan(&roleID, &implied); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			out[i].Implies = append(out[i].Implies, implied)
		}
	}
	if err := impRows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRole fetches one role by key, including its direct implications.
func (r *Repository) GetRole(ctx context.Context, key string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, key, name, partition, created_at, updated_at
		FROM roles WHERE key = $1`, key).
		Scan(&role.ID, &role.Key, &role.Name, &role.Partition, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT t.key
		FROM role_implications ri
		JOIN roles t ON t.id = ri.implied_role_id
		WHERE ri.role_id = $1
		ORDER BY t.key`, role.ID)
	if err != nil {
		return Role{}, err
	}
	defer rows.Close()
	role.Implies = []string{}
	for rows.Next() {
		var implied string
		if err := rows.Scan(&implied); err != nil {
			return Role{}, err
		}
		role.Implies = append(role.Implies, implied)
	}
	if err := rows.Err(); err != nil {
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, key, name, partition string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (key, name, partition)
		VALUES ($1, $2, $3)
		RETURNING id, key, name, partition, created_at, updated_at`, key, name, partition).
		Scan(&role.ID, &role.Key, &role.Name, &role.Partition, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, httpx.ErrDuplicate
		}
		return Role{}, err
	}
	role.Implies = []string{}
	return role, nil
}

// UpdateRole updates name and partition of an existing role.
func (r *Repository) UpdateRole(ctx context.Context, key, name, partition string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, partition = $3, updated_at = NOW()
		WHERE key = $1
		RETURNING id, key, name, partition, created_at, updated_at`, key, name, partition).
		Scan(&role.ID, &role.Key, &role.Name, &role.Partition, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return r.GetRole(ctx, role.Key)
}

// DeleteRole removes a role unless another role still implies it.
func (r *Repository) DeleteRole(ctx context.Context, key string) error {
	var inbound int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM role_implications ri
		JOIN roles t ON t.id = ri.implied_role_id
		WHERE t.key = $1`, key).Scan(&inbound)
	if err != nil {
		return err
	}
	if inbound > 0 {
		return httpx.ErrConflictOpen
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE key = $1`, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// querier is the slice of pgx.Tx the implication rewrite needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn5.CommandTag, error)
}

// SetImplications replaces the direct implications of a role. The delete and
// reinserts share one transaction so a failure never leaves the edge set
// half-rewritten.
func (r *Repository) SetImplications(ctx context.Context, key string, implied []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return replaceImplications(ctx, tx, key, implied)
	})
}

func replaceImplications(ctx context.Context, q querier, key string, implied []string) error {
	var roleID int64
	if err := q.QueryRow(ctx, `SELECT id FROM roles WHERE key = $1`, key).Scan(&roleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return httpx.ErrNotFound
		}
		return err
	}

	impliedIDs := make([]int64, 0, len(implied))
	for _, target := range implied {
		var id int64
		if err := q.QueryRow(ctx, `SELECT id FROM roles WHERE key = $1`, target).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return httpx.ErrNotFound
			}
			return err
		}
		impliedIDs = append(impliedIDs, id)
	}

	if _, err := q.Exec(ctx, `DELETE FROM role_implications WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, id := range impliedIDs {
		if _, err := q.Exec(ctx, `
			INSERT INTO role_implications (role_id, implied_role_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, id); err != nil {
			return err
		}
	}
	return nil
}
