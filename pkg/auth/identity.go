package auth

import (
	"context"
	"errors"
	"strconv"
)

// Role is a marketplace role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTutor, RoleStudent:
		return true
	}
	return false
}

// ErrInvalidIdentity is returned when claims carry no usable user id or role.
var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is the authenticated requester.
type Identity struct {
	UserID int64
	Role   Role
}

// IdentityFromClaims reads the user id from the subject and the first known role.
func IdentityFromClaims(c *Claims) (Identity, error) {
	if c == nil {
		return Identity{}, ErrInvalidIdentity
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, ErrInvalidIdentity
	}
	for _, r := range c.Roles {
		if role := Role(r); role.Valid() {
			return Identity{UserID: id, Role: role}, nil
		}
	}
	return Identity{}, ErrInvalidIdentity
}

// HasRole reports whether the identity holds one of roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

type identityContextKey struct{}

// WithIdentity stores the authenticated requester in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
