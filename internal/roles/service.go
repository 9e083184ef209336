package roles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

// RepositoryPort defines data access methods for the role catalog.
type RepositoryPort interface {
	ListRoles(ctx context.Context, partition string) ([]Role, error)
	GetRole(ctx context.Context, key string) (Role, error)
	CreateRole(ctx context.Context, key, name, partition string) (Role, error)
	UpdateRole(ctx context.Context, key, name, partition string) (Role, error)
	DeleteRole(ctx context.Context, key string) error
	SetImplications(ctx context.Context, key string, implied []string) error
}

// Invalidator drops cached graph snapshots after catalog mutations.
type Invalidator interface {
	InvalidateSnapshot(ctx context.Context) error
}

// Service handles role catalog business logic.
type Service struct {
	repo       RepositoryPort
	invalidate Invalidator
	logger     *slog.Logger
}

// NewService builds a Service instance. invalidate may be nil in offline tools.
func NewService(repo RepositoryPort, invalidate Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidate: invalidate, logger: logger}
}

// ListRoles returns catalog entries, optionally filtered by partition.
func (s *Service) ListRoles(ctx context.Context, partition string) ([]Role, error) {
	return s.repo.ListRoles(ctx, partition)
}

// GetRole fetches one role by key.
func (s *Service) GetRole(ctx context.Context, key string) (Role, error) {
	return s.repo.GetRole(ctx, NormalizeKey(key))
}

// CreateRole inserts a new catalog entry.
func (s *Service) CreateRole(ctx context.Context, key, name, partition string) (Role, error) {
	key = NormalizeKey(key)
	if key == "" {
		return Role{}, fmt.Errorf("%w: role key required", httpx.ErrValidation)
	}
	role, err := s.repo.CreateRole(ctx, key, name, partition)
	if err != nil {
		return Role{}, err
	}
	s.dropSnapshot(ctx)
	return role, nil
}

// UpdateRole changes name and partition of a role.
func (s *Service) UpdateRole(ctx context.Context, key, name, partition string) (Role, error) {
	role, err := s.repo.UpdateRole(ctx, NormalizeKey(key), name, partition)
	if err != nil {
		return Role{}, err
	}
	s.dropSnapshot(ctx)
	return role, nil
}

// DeleteRole removes a role that nothing implies anymore.
func (s *Service) DeleteRole(ctx context.Context, key string) error {
	if err := s.repo.DeleteRole(ctx, NormalizeKey(key)); err != nil {
		return err
	}
	s.dropSnapshot(ctx)
	return nil
}

// SetImplications replaces the direct implication edges of a role.
// Self-implication is rejected; cycles through other roles are legal and
// handled by the graph core.
func (s *Service) SetImplications(ctx context.Context, key string, implied []string) error {
	key = NormalizeKey(key)
	normalized := make([]string, 0, len(implied))
	for _, target := range implied {
		target = NormalizeKey(target)
		if target == key {
			return fmt.Errorf("%w: role cannot imply itself", httpx.ErrValidation)
		}
		normalized = append(normalized, target)
	}
	if err := s.repo.SetImplications(ctx, key, normalized); err != nil {
		return err
	}
	s.dropSnapshot(ctx)
	return nil
}

// Snapshot assembles the current catalog into an immutable implication graph.
func (s *Service) Snapshot(ctx context.Context) (*rolegraph.Graph, error) {
	all, err := s.repo.ListRoles(ctx, "")
	if err != nil {
		return nil, err
	}
	return BuildGraph(all), nil
}

// BuildGraph converts catalog entries into an implication graph.
func BuildGraph(all []Role) *rolegraph.Graph {
	graphRoles := make([]rolegraph.Role, len(all))
	for i, role := range all {
		graphRoles[i] = rolegraph.Role{
			Key:       role.Key,
			Implies:   role.Implies,
			Partition: role.Partition,
		}
	}
	return rolegraph.NewGraph(graphRoles)
}

// dropSnapshot invalidates the cached graph. The catalog write already
// succeeded, so a failed invalidation is logged rather than returned; sweeps
// read a stale graph until the snapshot TTL expires.
func (s *Service) dropSnapshot(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	if err := s.invalidate.InvalidateSnapshot(ctx); err != nil && s.logger != nil {
		s.logger.Warn("snapshot invalidation failed", slog.Any("error", err))
	}
}
