// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides the authenticated principal and its request-context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/lostfound-auth/internal/ctxkeys"
	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
)

// Principal is the identity a request was authenticated as.
type Principal struct {
	AccountID string
	Email     string
	Role      models.Role
}

// PrincipalFor derives the principal of an account.
func PrincipalFor(acc *models.Account) *Principal {
	return &Principal{
		AccountID: acc.ID,
		Email:     acc.Email,
		Role:      acc.Role,
	}
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxkeys.Principal{}, p)
}

// GetPrincipal returns the authenticated principal from the context, or nil if not authenticated.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(ctxkeys.Principal{}).(*Principal); ok {
		return p
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated principal.
func IsAuthenticated(ctx context.Context) bool {
	return GetPrincipal(ctx) != nil
}
