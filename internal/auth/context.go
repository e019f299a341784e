// Package auth resolves bearer credentials into tenant-scoped users and
// evaluates their permissions.
package auth

import (
	"context"

	"github.com/tallyvox/tallyvox/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// userContextKey is the context key for storing the AuthenticatedUser.
	userContextKey contextKey = "authenticated_user"
)

// ContextWithUser adds the authenticated user to the context.
func ContextWithUser(ctx context.Context, user *model.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from the context.
// Returns nil if not present.
func UserFromContext(ctx context.Context) *model.AuthenticatedUser {
	user, ok := ctx.Value(userContextKey).(*model.AuthenticatedUser)
	if !ok {
		return nil
	}
	return user
}
