package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated actor attached to a request. Server-side
// attribution fields (created_by, updated_by, audit actor) are always taken
// from here, never from client-submitted data.
type Identity struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	Role      Role
	FirstName string
	LastName  string
}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the authenticated identity from context.
// The second return value is false for unauthenticated requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
