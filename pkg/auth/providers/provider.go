package providers

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthProvider verifies the bearer tokens presented by participants and
// operators.
type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

type TokenClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}
