// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"codeberg.org/oliverandrich/lostfound-auth/internal/i18n"
	"codeberg.org/oliverandrich/lostfound-auth/internal/templates"
)

func render(t *testing.T, ctx context.Context, success bool) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, templates.VerifyEmail(success).Render(ctx, &buf))
	return buf.String()
}

func TestVerifyEmail(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.English)

	t.Run("success", func(t *testing.T) {
		html := render(t, ctx, true)
		assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
		assert.Contains(t, html, `<html lang="en">`)
		assert.Contains(t, html, "<title>Email verification | Lost &amp; Found</title>")
		assert.Contains(t, html, `<p class="success">`)
		assert.Contains(t, html, "Your email address has been verified.")
		assert.Contains(t, html, "Lost &amp; Found")
		assert.NotContains(t, html, "Request a new link")
	})

	t.Run("failure", func(t *testing.T) {
		html := render(t, ctx, false)
		assert.Contains(t, html, `<p class="error">`)
		assert.Contains(t, html, "invalid or has expired")
		assert.Contains(t, html, "Request a new link")
	})
}

func TestVerifyEmail_German(t *testing.T) {
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), language.German)

	html := render(t, ctx, true)

	assert.Contains(t, html, `<html lang="de">`)
	assert.Contains(t, html, "Fundbüro")
}
