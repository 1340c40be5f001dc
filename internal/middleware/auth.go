// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/lostfound-auth/internal/auth"
	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/token"
)

// TokenValidator checks bearer tokens.
type TokenValidator interface {
	Validate(tokenString string) token.Result
}

// AccountFinder resolves a token subject to an account.
type AccountFinder interface {
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// exemptPrefixes are skipped by the authentication gate entirely. A prefix
// covers the path itself and everything below it.
var exemptPrefixes = []string{
	"/auth/register",
	"/auth/login",
	"/auth/federated-login",
	"/auth/reset-password",
	"/auth/verify-email",
	"/uploads",
}

func isExempt(path string) bool {
	for _, prefix := range exemptPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Authenticate resolves the bearer token of a request into a principal and
// stores it in the request context. It never rejects a request: a missing or
// bad token, an unknown subject or any failure during resolution leaves the
// request unauthenticated.
func Authenticate(tokens TokenValidator, accounts AccountFinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if isExempt(req.URL.Path) {
				return next(c)
			}

			raw := bearerToken(req.Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				return next(c)
			}

			if p := resolvePrincipal(req.Context(), tokens, accounts, raw); p != nil {
				c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), p)))
			}
			return next(c)
		}
	}
}

func resolvePrincipal(ctx context.Context, tokens TokenValidator, accounts AccountFinder, raw string) (p *auth.Principal) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "auth_resolution_panic", "panic", r)
			p = nil
		}
	}()

	res := tokens.Validate(raw)
	if !res.Valid {
		slog.DebugContext(ctx, "auth_invalid_token")
		return nil
	}

	acc, err := accounts.FindAccountByEmail(ctx, res.Subject)
	if err != nil {
		slog.WarnContext(ctx, "auth_account_lookup_failed", "error", err)
		return nil
	}
	if acc == nil {
		slog.DebugContext(ctx, "auth_unknown_subject")
		return nil
	}
	return auth.PrincipalFor(acc)
}
