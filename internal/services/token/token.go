// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and validates the stateless bearer tokens handed to
// clients after login. Tokens are HS256-signed JWTs whose subject is the
// account email.
package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest HMAC secret accepted.
const MinSecretLength = 32

var (
	ErrEmptySubject = errors.New("token subject must not be empty")
	ErrWeakSecret   = fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
)

// Result is the outcome of validating a token. Subject and ExpiresAt are
// only set when Valid is true.
type Result struct {
	Valid     bool
	Subject   string
	ExpiresAt time.Time
}

// Manager signs and verifies bearer tokens with a server-held secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager returns a Manager signing with secret. Tokens live for ttl.
func NewManager(secret []byte, ttl time.Duration, issuer string, opts ...Option) (*Manager, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	m := &Manager{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RandomSecret returns a fresh secret of MinSecretLength bytes.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, MinSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	return secret, nil
}

// TTL returns the lifetime of issued tokens.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue returns a signed token for subject.
func (m *Manager) Issue(subject string) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiry. Any failure
// yields an invalid Result.
func (m *Manager) Validate(tokenString string) Result {
	if tokenString == "" {
		return Result{}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Result{}
	}

	return Result{
		Valid:     true,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}
