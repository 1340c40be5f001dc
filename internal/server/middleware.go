// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"codeberg.org/oliverandrich/lostfound-auth/internal/appcontext"
	"codeberg.org/oliverandrich/lostfound-auth/internal/config"
	"codeberg.org/oliverandrich/lostfound-auth/internal/middleware"
)

// setupMiddleware installs the request chain. The authentication gate must
// run before the authorization policy.
func setupMiddleware(e *echo.Echo, d Deps) {
	e.Pre(echomw.RemoveTrailingSlash())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Secure())
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", d.Config.Server.MaxBodySize)))
	e.Use(corsMiddleware(d.Config))
	e.Use(middleware.Locale())
	e.Use(middleware.Authenticate(d.Tokens, d.Repo))
	e.Use(middleware.Authorize(d.Policy))
	e.Use(appcontext.Middleware())
}

// corsMiddleware allows the configured front-end origins to send bearer tokens.
func corsMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodPut, http.MethodPatch, http.MethodDelete,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType,
			echo.HeaderAccept, echo.HeaderAuthorization,
		},
		MaxAge: 3600,
	})
}
