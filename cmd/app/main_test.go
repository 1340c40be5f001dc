// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	require.NoError(t, cmd.Run(context.Background(), append([]string{"app"}, args...)))
	return out.String()
}

func TestConfigCommand(t *testing.T) {
	secret := strings.Repeat("x", 32)

	out := run(t, "--token-secret", secret, "--smtp-password", "hunter2", "--port", "9090", "config")

	assert.Contains(t, out, "[server]")
	assert.Contains(t, out, "port = 9090")
	assert.Contains(t, out, "[token]")
	assert.Contains(t, out, `issuer = "lostfound"`)
	assert.NotContains(t, out, secret)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
}

func TestMigrateCommands(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")

	run(t, "--database-dsn", dsn, "migrate", "up")
	assert.Equal(t, "2\n", run(t, "--database-dsn", dsn, "migrate", "version"))

	run(t, "--database-dsn", dsn, "migrate", "down")
	assert.Equal(t, "1\n", run(t, "--database-dsn", dsn, "migrate", "version"))

	run(t, "--database-dsn", dsn, "migrate", "reset")
	assert.Equal(t, "0\n", run(t, "--database-dsn", dsn, "migrate", "version"))
}
