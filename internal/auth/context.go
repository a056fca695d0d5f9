// Package auth guards HTTP requests: it authenticates bearer tokens and
// authorizes operations against the permission engine before handlers run.
package auth

import (
	"context"

	"github.com/prn-tf/darius-projects/internal/domain"
)

type contextKey int

const identityKey contextKey = iota

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	// User is the authenticated user, freshly loaded from the store.
	User *domain.User
}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the authenticated identity from a context.
// The second return is false when the request was not authenticated.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// Requester converts the identity into the permission engine's requester
// shape.
func (id *Identity) Requester() domain.Requester {
	return domain.Requester{
		ID:   id.User.ID,
		Role: id.User.Role,
	}
}
