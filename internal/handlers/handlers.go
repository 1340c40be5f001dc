// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/lostfound-auth/internal/services/auth"
)

// IdentityVerifier checks federated ID tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, raw string) (auth.FederatedIdentity, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	auth     *auth.Service
	verifier IdentityVerifier
}

// New creates a new Handlers instance. verifier may be nil, in which case
// federated identities are taken from the request body as sent.
func New(svc *auth.Service, verifier IdentityVerifier) *Handlers {
	return &Handlers{auth: svc, verifier: verifier}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
