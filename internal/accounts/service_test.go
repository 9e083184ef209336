package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

type mockRepository struct {
	accounts   map[int64]*Account
	knownRoles map[string]struct{}
	nextID     int64
	txCalls    [][]string
}

func newMockRepository(roleKeys ...string) *mockRepository {
	known := make(map[string]struct{}, len(roleKeys))
	for _, key := range roleKeys {
		known[key] = struct{}{}
	}
	return &mockRepository{accounts: make(map[int64]*Account), knownRoles: known, nextID: 1}
}

func (m *mockRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	for _, acc := range m.accounts {
		out = append(out, *acc)
	}
	return out, nil
}

func (m *mockRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return Account{}, httpx.ErrNotFound
	}
	return *acc, nil
}

func (m *mockRepository) CreateAccount(ctx context.Context, login, name string) (Account, error) {
	for _, acc := range m.accounts {
		if acc.Login == login {
			return Account{}, httpx.ErrDuplicate
		}
	}
	acc := &Account{ID: m.nextID, Login: login, Name: name, Active: true, Roles: []string{}}
	m.nextID++
	m.accounts[acc.ID] = acc
	return *acc, nil
}

func (m *mockRepository) AssignRole(ctx context.Context, accountID int64, roleKey string) error {
	acc, ok := m.accounts[accountID]
	if !ok {
		return httpx.ErrNotFound
	}
	if _, known := m.knownRoles[roleKey]; !known {
		return httpx.ErrNotFound
	}
	for _, existing := range acc.Roles {
		if existing == roleKey {
			return nil
		}
	}
	acc.Roles = append(acc.Roles, roleKey)
	return nil
}

func (m *mockRepository) RemoveRole(ctx context.Context, accountID int64, roleKey string) error {
	acc, ok := m.accounts[accountID]
	if !ok {
		return httpx.ErrNotFound
	}
	for i, existing := range acc.Roles {
		if existing == roleKey {
			acc.Roles = append(acc.Roles[:i], acc.Roles[i+1:]...)
			return nil
		}
	}
	return httpx.ErrNotFound
}

func (m *mockRepository) RemoveRolesTx(ctx context.Context, accountID int64, roleKeys []string) error {
	m.txCalls = append(m.txCalls, roleKeys)
	for _, key := range roleKeys {
		_ = m.RemoveRole(ctx, accountID, key)
	}
	return nil
}

func (m *mockRepository) ListAssignments(ctx context.Context) ([]rolegraph.Assignment, error) {
	var out []rolegraph.Assignment
	for _, acc := range m.accounts {
		if acc.Active {
			out = append(out, rolegraph.Assignment{UserID: acc.Login, Roles: acc.Roles})
		}
	}
	return out, nil
}

func TestCreateAccountNormalizesLogin(t *testing.T) {
	svc := NewService(newMockRepository())

	acc, err := svc.CreateAccount(context.Background(), "  Jane.Doe ", " Jane Doe ")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe", acc.Login)
	assert.Equal(t, "Jane Doe", acc.Name)

	_, err = svc.CreateAccount(context.Background(), "   ", "")
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAssignRoleNormalizesKey(t *testing.T) {
	repo := newMockRepository("tenant")
	svc := NewService(repo)
	acc, err := svc.CreateAccount(context.Background(), "jane", "Jane")
	require.NoError(t, err)

	require.NoError(t, svc.AssignRole(context.Background(), acc.ID, " Tenant "))
	got, err := svc.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant"}, got.Roles)

	err = svc.AssignRole(context.Background(), acc.ID, "ghost")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRemoveRolesBatchesThroughTransaction(t *testing.T) {
	repo := newMockRepository("tenant", "portal")
	svc := NewService(repo)
	acc, err := svc.CreateAccount(context.Background(), "jane", "Jane")
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(context.Background(), acc.ID, "tenant"))
	require.NoError(t, svc.AssignRole(context.Background(), acc.ID, "portal"))

	require.NoError(t, svc.RemoveRoles(context.Background(), acc.ID, []string{"Tenant", "PORTAL"}))
	require.Len(t, repo.txCalls, 1)
	assert.Equal(t, []string{"tenant", "portal"}, repo.txCalls[0])

	got, err := svc.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Roles)

	// No-op when there is nothing to remove.
	require.NoError(t, svc.RemoveRoles(context.Background(), acc.ID, nil))
	assert.Len(t, repo.txCalls, 1)
}
