// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package federation verifies ID tokens issued by the external identity
// provider and turns them into federated identities.
package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"codeberg.org/oliverandrich/lostfound-auth/internal/config"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/auth"
)

// ErrInvalidToken is returned for any ID token that fails verification.
var ErrInvalidToken = errors.New("invalid identity token")

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified Flag   `json:"email_verified"`
	Name          string `json:"name"`
}

// Verifier checks provider ID tokens against the provider's signing keys.
type Verifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	now      func() time.Time
	close    func()
}

// NewVerifier fetches the provider's JWKS and keeps it refreshed in the
// background until Close is called.
func NewVerifier(cfg config.FederationConfig) (*Verifier, error) {
	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			slog.Warn("jwks_refresh_failed", "url", cfg.JWKSURL, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", cfg.JWKSURL, err)
	}

	v := NewVerifierWithKeyfunc(jwks.Keyfunc, cfg.Issuer, cfg.Audience)
	v.close = jwks.EndBackground
	return v, nil
}

// NewVerifierWithKeyfunc builds a Verifier around an existing key lookup.
func NewVerifierWithKeyfunc(kf jwt.Keyfunc, issuer, audience string) *Verifier {
	return &Verifier{
		keyfunc:  kf,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v.close != nil {
		v.close()
	}
}

// Verify validates raw and returns the identity it asserts.
func (v *Verifier) Verify(_ context.Context, raw string) (auth.FederatedIdentity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &idTokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, v.keyfunc, opts...)
	if err != nil {
		return auth.FederatedIdentity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.Email == "" {
		return auth.FederatedIdentity{}, ErrInvalidToken
	}

	return auth.FederatedIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified.Ptr(),
	}, nil
}
