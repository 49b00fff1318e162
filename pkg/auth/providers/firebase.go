package providers

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"google.golang.org/api/option"
)

var _ AuthProvider = &FirebaseAuthProvider{}

// FirebaseAuthProvider verifies Firebase ID tokens. The UID of a verified
// token binds a participant to its seat across connections.
type FirebaseAuthProvider struct {
	auth *auth.Client
}

type NewFirebaseAuthProviderOptions struct {
	ProjectID string
	// APIKey and CredentialsFile are alternatives. CredentialsFile wins when
	// both are set.
	APIKey          string
	CredentialsFile string
}

func NewFirebaseAuthProvider(ctx context.Context, opts NewFirebaseAuthProviderOptions) (*FirebaseAuthProvider, error) {
	var clientOpts []option.ClientOption
	switch {
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	case opts.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %v", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get firebase auth client: %v", err)
	}

	return &FirebaseAuthProvider{auth: client}, nil
}

func (p *FirebaseAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	token, err := p.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &TokenClaims{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		claims.Email = email
	}
	return claims, nil
}
