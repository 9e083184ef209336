package accounts

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-fm/gatehouse/internal/platform/db"
	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

// Repository provides PostgreSQL backed persistence for accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListAccounts returns all accounts with their direct role keys.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, login, name, active, created_at
		FROM accounts
		ORDER BY login`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	index := make(map[int64]int)
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.ID, &acc.Login, &acc.Name, &acc.Active, &acc.CreatedAt); err != nil {
			return nil, err
		}
		acc.Roles = []string{}
		index[acc.ID] = len(out)
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	roleRows, err := r.pool.Query(ctx, `
		SELECT ar.account_id, ro.key
		FROM account_roles ar
		JOIN roles ro ON ro.id = ar.role_id
		ORDER BY ar.account_id, ro.key`)
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var accountID int64
		var key string
		if err := roleRows.Scan(&accountID, &key); err != nil {
			return nil, err
		}
		if i, ok := index[accountID]; ok {
			out[i].Roles = append(out[i].Roles, key)
		}
	}
	if err := roleRows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAccount fetches one account with its direct role keys.
func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	var acc Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, login, name, active, created_at
		FROM accounts WHERE id = $1`, id).
		Scan(&acc.ID, &acc.Login, &acc.Name, &acc.Active, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, httpx.ErrNotFound
		}
		return Account{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ro.key
		FROM account_roles ar
		JOIN roles ro ON ro.id = ar.role_id
		WHERE ar.account_id = $1
		ORDER BY ro.key`, id)
	if err != nil {
		return Account{}, err
	}
	defer rows.Close()
	acc.Roles = []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return Account{}, err
		}
		acc.Roles = append(acc.Roles, key)
	}
	if err := rows.Err(); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// CreateAccount inserts a new account.
func (r *Repository) CreateAccount(ctx context.Context, login, name string) (Account, error) {
	var acc Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (login, name, active)
		VALUES ($1, $2, TRUE)
		RETURNING id, login, name, active, created_at`, login, name).
		Scan(&acc.ID, &acc.Login, &acc.Name, &acc.Active, &acc.CreatedAt)
	if err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, httpx.ErrDuplicate
		}
		return Account{}, err
	}
	acc.Roles = []string{}
	return acc, nil
}

// AssignRole grants a role to an account by role key.
func (r *Repository) AssignRole(ctx context.Context, accountID int64, roleKey string) error {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO account_roles (account_id, role_id)
		SELECT $1, id FROM roles WHERE key = $2
		ON CONFLICT DO NOTHING`, accountID, roleKey)
	if err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return httpx.ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the role key does not exist or the grant already exists;
		// distinguish so callers get a useful error.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE key = $1)`, roleKey).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return httpx.ErrNotFound
		}
	}
	return nil
}

// RemoveRole revokes a role from an account by role key.
func (r *Repository) RemoveRole(ctx context.Context, accountID int64, roleKey string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM account_roles
		WHERE account_id = $1
		  AND role_id = (SELECT id FROM roles WHERE key = $2)`, accountID, roleKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// RemoveRolesTx revokes a set of roles from an account inside one
// RepeatableRead transaction, so conflict fixes land atomically.
func (r *Repository) RemoveRolesTx(ctx context.Context, accountID int64, roleKeys []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, key := range roleKeys {
			if _, err := tx.Exec(ctx, `
				DELETE FROM account_roles
				WHERE account_id = $1
				  AND role_id = (SELECT id FROM roles WHERE key = $2)`, accountID, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAssignments streams all active accounts as graph assignments.
func (r *Repository) ListAssignments(ctx context.Context) ([]rolegraph.Assignment, error) {
	accounts, err := r.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]rolegraph.Assignment, 0, len(accounts))
	for _, acc := range accounts {
		if !acc.Active {
			continue
		}
		out = append(out, rolegraph.Assignment{
			UserID: strconv.FormatInt(acc.ID, 10),
			Roles:  acc.Roles,
		})
	}
	return out, nil
}
