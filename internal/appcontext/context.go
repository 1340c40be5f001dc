// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context handed to handlers.
package appcontext

import (
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/lostfound-auth/internal/auth"
)

// Context is a custom Echo context carrying the authenticated principal.
type Context struct {
	echo.Context
	Principal *auth.Principal // nil if not authenticated
}

// Wrap returns c as a *Context, taking the principal from the request context.
func Wrap(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	return &Context{
		Context:   c,
		Principal: auth.GetPrincipal(c.Request().Context()),
	}
}

// Middleware wraps every request context so handlers can type-assert it.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(Wrap(c))
		}
	}
}

// GetPrincipal returns the authenticated principal, or nil if not authenticated.
func (c *Context) GetPrincipal() *auth.Principal {
	return c.Principal
}

// IsAuthenticated returns true if the request is authenticated.
func (c *Context) IsAuthenticated() bool {
	return c.Principal != nil
}
