package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a raw bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// SecretVerifier accepts HS256 tokens signed with a shared secret.
type SecretVerifier []byte

func (s SecretVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	return ParseToken(raw, s)
}

// OIDCVerifier accepts tokens issued by an OpenID Connect provider. Keys are
// fetched from the provider's JWKS endpoint and the audience is not checked.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier runs discovery against issuer. ctx is kept for later key
// fetches, so it should outlive the server.
func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

func (o *OIDCVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("empty token")
	}
	idToken, err := o.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var extra struct {
		Role string `json:"role"`
	}
	if err := idToken.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if idToken.Subject == "" {
		return nil, errors.New("subject claim not found in token")
	}
	return &Claims{
		Role: extra.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   idToken.Subject,
			Issuer:    idToken.Issuer,
			ExpiresAt: jwt.NewNumericDate(idToken.Expiry),
		},
	}, nil
}
