package providers

import (
	"context"
	"crypto/subtle"
)

var _ AuthProvider = &StaticAuthProvider{}

// StaticAuthProvider accepts a fixed set of tokens, each mapped to a UID.
type StaticAuthProvider struct {
	tokens map[string]string
}

func NewStaticAuthProvider(tokens map[string]string) *StaticAuthProvider {
	copied := make(map[string]string, len(tokens))
	for token, uid := range tokens {
		copied[token] = uid
	}
	return &StaticAuthProvider{tokens: copied}
}

func (p *StaticAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	for token, uid := range p.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(idToken)) == 1 {
			return &TokenClaims{UID: uid}, nil
		}
	}
	return nil, ErrInvalidToken
}
