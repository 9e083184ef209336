package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
	"github.com/gatehouse-fm/gatehouse/internal/roles"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	CreateAccount(ctx context.Context, login, name string) (Account, error)
	AssignRole(ctx context.Context, accountID int64, roleKey string) error
	RemoveRole(ctx context.Context, accountID int64, roleKey string) error
	RemoveRolesTx(ctx context.Context, accountID int64, roleKeys []string) error
	ListAssignments(ctx context.Context) ([]rolegraph.Assignment, error)
}

// Service handles account business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListAccounts returns all accounts with direct role keys.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// GetAccount fetches one account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// CreateAccount inserts a new account.
func (s *Service) CreateAccount(ctx context.Context, login, name string) (Account, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return Account{}, fmt.Errorf("%w: login required", httpx.ErrValidation)
	}
	return s.repo.CreateAccount(ctx, login, strings.TrimSpace(name))
}

// AssignRole grants a role to an account.
func (s *Service) AssignRole(ctx context.Context, accountID int64, roleKey string) error {
	roleKey = roles.NormalizeKey(roleKey)
	if roleKey == "" {
		return fmt.Errorf("%w: role key required", httpx.ErrValidation)
	}
	return s.repo.AssignRole(ctx, accountID, roleKey)
}

// RemoveRole revokes a role from an account.
func (s *Service) RemoveRole(ctx context.Context, accountID int64, roleKey string) error {
	return s.repo.RemoveRole(ctx, accountID, roles.NormalizeKey(roleKey))
}

// Assignment returns the account's direct roles in graph form.
func (s *Service) Assignment(ctx context.Context, id int64) (rolegraph.Assignment, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return rolegraph.Assignment{}, err
	}
	return rolegraph.Assignment{UserID: fmt.Sprintf("%d", acc.ID), Roles: acc.Roles}, nil
}

// ListAssignments returns every active account as a graph assignment.
func (s *Service) ListAssignments(ctx context.Context) ([]rolegraph.Assignment, error) {
	return s.repo.ListAssignments(ctx)
}

// RemoveRoles revokes several roles atomically. Used by conflict resolution.
func (s *Service) RemoveRoles(ctx context.Context, accountID int64, roleKeys []string) error {
	if len(roleKeys) == 0 {
		return nil
	}
	normalized := make([]string, len(roleKeys))
	for i, key := range roleKeys {
		normalized[i] = roles.NormalizeKey(key)
	}
	return s.repo.RemoveRolesTx(ctx, accountID, normalized)
}
