// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/lostfound-auth/internal/i18n"
	"codeberg.org/oliverandrich/lostfound-auth/internal/middleware"
)

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(middleware.Locale())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, i18n.GetLocale(c.Request().Context()))
	})

	tests := []struct {
		acceptLang string
		expected   string
	}{
		{"de-DE,de;q=0.9,en;q=0.8", "de"},
		{"en-US,en;q=0.9", "en"},
		{"fr-FR", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.acceptLang, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tt.acceptLang)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Body.String())
		})
	}
}
