package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// contextKey is an unexported type to prevent key collisions in context.
type contextKey string

const identityKey contextKey = "identity"

// ErrIdentityNotFound is returned when no authenticated identity exists in the
// request context. Handlers should return 401 when this error occurs.
var ErrIdentityNotFound = errors.New("identity not found in context")

// Identity is the already-verified caller: who they are and what role they hold.
type Identity struct {
	HolderID uuid.UUID
	Role     string
}

// HasRole reports whether the identity's role matches role, ignoring case.
func (i Identity) HasRole(role string) bool {
	return role != "" && strings.EqualFold(i.Role, role)
}

// IdentityFromCtx extracts the authenticated identity from the request context.
// Returns ErrIdentityNotFound if none is set or the holder ID is uuid.Nil.
func IdentityFromCtx(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.HolderID == uuid.Nil {
		return Identity{}, ErrIdentityNotFound
	}
	return id, nil
}

// WithIdentity returns a new context carrying id.
// Used by authentication middleware after validating the token or session.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
