// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/lostfound-auth/internal/auth"
	"codeberg.org/oliverandrich/lostfound-auth/internal/middleware"
	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
	"codeberg.org/oliverandrich/lostfound-auth/internal/policy"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/token"
	"codeberg.org/oliverandrich/lostfound-auth/internal/testutil"
)

type panickingFinder struct{}

func (panickingFinder) FindAccountByEmail(context.Context, string) (*models.Account, error) {
	panic("boom")
}

type failingFinder struct{}

func (failingFinder) FindAccountByEmail(context.Context, string) (*models.Account, error) {
	return nil, errors.New("connection refused")
}

func newTokens(t *testing.T) *token.Manager {
	t.Helper()
	m, err := token.NewManager([]byte(testutil.TestSecret), time.Hour, "lostfound")
	require.NoError(t, err)
	return m
}

// newEcho builds the gate + policy chain with handlers that echo the principal.
func newEcho(tokens middleware.TokenValidator, finder middleware.AccountFinder) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Authenticate(tokens, finder))
	e.Use(middleware.Authorize(policy.Default()))

	whoami := func(c echo.Context) error {
		p := auth.GetPrincipal(c.Request().Context())
		if p == nil {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, p.Email+"/"+string(p.Role))
	}
	e.GET("/items", whoami)
	e.GET("/items/:id", whoami)
	e.POST("/items", whoami)
	e.GET("/auth/me", whoami)
	e.POST("/auth/login", whoami)
	e.GET("/auth/login-history", whoami)
	e.GET("/auth/registered", whoami)
	e.POST("/auth/verify-email/resend", whoami)
	e.GET("/uploads/*", whoami)
	return e
}

func do(e *echo.Echo, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_ValidToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "admin@x.com", testutil.Verified(), testutil.WithRole(models.RoleAdmin))
	tokens := newTokens(t)
	e := newEcho(tokens, repo)

	tok, err := tokens.Issue("admin@x.com")
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/auth/me", tok)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@x.com/ADMIN", rec.Body.String())
}

func TestAuthenticate_GateTransparency(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	e := newEcho(newTokens(t), repo)

	tests := []struct {
		name   string
		method string
		target string
		bearer string
		status int
	}{
		{"public without token", http.MethodGet, "/items", "", http.StatusOK},
		{"public with invalid token", http.MethodGet, "/items", "not-a-token", http.StatusOK},
		{"public item detail with invalid token", http.MethodGet, "/items/42", "not-a-token", http.StatusOK},
		{"protected without token", http.MethodGet, "/auth/me", "", http.StatusUnauthorized},
		{"protected with invalid token", http.MethodGet, "/auth/me", "not-a-token", http.StatusUnauthorized},
		{"write on public read route", http.MethodPost, "/items", "not-a-token", http.StatusUnauthorized},
		{"exempt route with invalid token", http.MethodPost, "/auth/login", "not-a-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.method, tt.target, tt.bearer)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "anonymous", rec.Body.String())
			} else {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestAuthenticate_ExemptionStopsAtPathBoundary(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "alice@x.com", testutil.Verified())
	tokens := newTokens(t)
	e := newEcho(tokens, repo)

	tok, err := tokens.Issue("alice@x.com")
	require.NoError(t, err)

	tests := []struct {
		method   string
		target   string
		expected string
	}{
		{http.MethodGet, "/auth/login-history", "alice@x.com/USER"},
		{http.MethodGet, "/auth/registered", "alice@x.com/USER"},
		{http.MethodPost, "/auth/login", "anonymous"},
		{http.MethodPost, "/auth/verify-email/resend", "anonymous"},
		{http.MethodGet, "/uploads/photo.png", "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(e, tt.method, tt.target, tok)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.expected, rec.Body.String())
		})
	}
}

func TestAuthenticate_UnknownSubject(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	tokens := newTokens(t)
	e := newEcho(tokens, repo)

	tok, err := tokens.Issue("ghost@x.com")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/auth/me", tok).Code)
	assert.Equal(t, "anonymous", do(e, http.MethodGet, "/items", tok).Body.String())
}

func TestAuthenticate_DegradesOnFailure(t *testing.T) {
	tokens := newTokens(t)
	tok, err := tokens.Issue("alice@x.com")
	require.NoError(t, err)

	for name, finder := range map[string]middleware.AccountFinder{
		"store error": failingFinder{},
		"panic":       panickingFinder{},
	} {
		t.Run(name, func(t *testing.T) {
			e := newEcho(tokens, finder)

			assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/auth/me", tok).Code)

			rec := do(e, http.MethodGet, "/items", tok)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "anonymous", rec.Body.String())
		})
	}
}

func TestAuthenticate_SchemeHandling(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "alice@x.com", testutil.Verified())
	tokens := newTokens(t)
	e := newEcho(tokens, repo)

	tok, err := tokens.Issue("alice@x.com")
	require.NoError(t, err)

	tests := []struct {
		header string
		status int
	}{
		{"Bearer " + tok, http.StatusOK},
		{"bearer " + tok, http.StatusOK},
		{"Basic " + tok, http.StatusUnauthorized},
		{tok, http.StatusUnauthorized},
		{"Bearer", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set(echo.HeaderAuthorization, tt.header)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, tt.header)
	}
}

func TestAuthorize_Preflight(t *testing.T) {
	e := echo.New()
	e.Use(middleware.Authorize(policy.Default()))
	e.OPTIONS("/auth/me", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	rec := do(e, http.MethodOptions, "/auth/me", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
