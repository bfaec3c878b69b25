// Package context provides request-scoped values shared across layers.
package context

import (
	"context"
)

// Actor identifies the user on whose behalf an operation runs.
// Audit entries and lifecycle events carry the actor id.
type Actor struct {
	UserID string
	Email  string
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context, or nil.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the acting user id from context or "system".
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil && a.UserID != "" {
		return a.UserID
	}
	return "system"
}
