// Package auth defines the token-validation collaborator boundary.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken covers missing, malformed, and expired tokens. The
// connection supervisor refuses the connection before registration when a
// validator returns it.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID   int64
	Username string
}

// Validator checks a bearer token and resolves the identity it carries.
type Validator interface {
	ValidateToken(ctx context.Context, token string) (Identity, error)
}
