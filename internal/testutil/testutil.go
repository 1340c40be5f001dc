// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/lostfound-auth/internal/database"
	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
	"codeberg.org/oliverandrich/lostfound-auth/internal/repository"
)

// TestSecret is a 32-byte HMAC secret for token tests.
const TestSecret = "test-secret-0123456789abcdefghijk"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// AccountOption customizes an account created by NewTestAccount.
type AccountOption func(*models.Account)

// WithPassword stores a low-cost bcrypt hash of password on the account.
func WithPassword(password string) AccountOption {
	return func(a *models.Account) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		a.SetPasswordHash(string(hash))
	}
}

// WithFederatedID links the account to a federated subject.
func WithFederatedID(id string) AccountOption {
	return func(a *models.Account) {
		a.SetFederatedID(id)
	}
}

// Verified marks the account's email as verified.
func Verified() AccountOption {
	return func(a *models.Account) {
		a.EmailVerified = true
	}
}

// WithRole sets the account's role.
func WithRole(role models.Role) AccountOption {
	return func(a *models.Account) {
		a.Role = role
	}
}

// NewTestAccount creates a test account in the database. Without options it
// gets the password "password123" and stays unverified.
func NewTestAccount(t *testing.T, repo *repository.Repository, email string, opts ...AccountOption) *models.Account {
	t.Helper()
	acc := &models.Account{
		Email:       email,
		DisplayName: models.DefaultDisplayName(email),
	}
	for _, opt := range opts {
		opt(acc)
	}
	if !acc.HasPassword() && !acc.IsFederated() {
		WithPassword("password123")(acc)
	}
	err := repo.SaveAccount(context.Background(), acc)
	require.NoError(t, err)
	return acc
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
