// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/lostfound-auth/internal/auth"
	"codeberg.org/oliverandrich/lostfound-auth/internal/policy"
)

// Authorize rejects requests without a principal on routes the policy
// marks as authenticated. It must run after Authenticate.
func Authorize(p *policy.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if p.Evaluate(req.Method, req.URL.Path) == policy.Public {
				return next(c)
			}
			if !auth.IsAuthenticated(req.Context()) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			return next(c)
		}
	}
}
