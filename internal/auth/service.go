package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
)

// RepositoryPort defines data access for token verification.
type RepositoryPort interface {
	FindByID(ctx context.Context, id string) (*Token, error)
}

// Service verifies presented credentials.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Verify checks a presented "<id>.<secret>" credential and returns the token.
// The id is the opaque identifier minted at token creation (a UUID in the
// shipped seed); only the first dot separates it from the secret.
func (s *Service) Verify(ctx context.Context, presented string) (*Token, error) {
	id, secret, ok := strings.Cut(presented, ".")
	if !ok || id == "" || secret == "" {
		return nil, httpx.ErrUnauthorized
	}
	token, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(token.Hash), []byte(secret)) != nil {
		return nil, httpx.ErrUnauthorized
	}
	return token, nil
}

// Format renders the wire form of a credential for newly minted tokens.
func Format(id, secret string) string {
	return fmt.Sprintf("%s.%s", id, secret)
}
