// Package auth verifies bearer API tokens for the admin API.
package auth

import (
	"context"
	"time"
)

// Token is an API credential. The secret is stored bcrypt-hashed; clients
// present "<id>.<secret>" so verification needs a single row lookup.
type Token struct {
	ID        string
	Name      string
	Hash      string
	Admin     bool
	Active    bool
	CreatedAt time.Time
}

type contextKey struct{}

// ContextWithActor stores the verified token identity on the context.
func ContextWithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextKey{}, name)
}

// ActorFromContext returns the verified token name, or empty when anonymous.
func ActorFromContext(ctx context.Context) string {
	name, _ := ctx.Value(contextKey{}).(string)
	return name
}
