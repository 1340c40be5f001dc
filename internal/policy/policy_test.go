// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package policy_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/lostfound-auth/internal/policy"
)

func TestDefault_Evaluate(t *testing.T) {
	p := policy.Default()

	tests := []struct {
		method   string
		path     string
		expected policy.Requirement
	}{
		{http.MethodPost, "/auth/register", policy.Public},
		{http.MethodPost, "/auth/login", policy.Public},
		{http.MethodPost, "/auth/federated-login", policy.Public},
		{http.MethodPost, "/auth/reset-password", policy.Public},
		{http.MethodGet, "/auth/verify-email", policy.Public},
		{http.MethodPost, "/auth/verify-email/resend", policy.Public},
		{http.MethodGet, "/auth/me", policy.Authenticated},
		{http.MethodGet, "/uploads/abc.jpg", policy.Public},
		{http.MethodGet, "/uploads/nested/dir/img.png", policy.Public},
		{http.MethodGet, "/uploadsX/img.png", policy.Authenticated},
		{http.MethodGet, "/health", policy.Public},
		{http.MethodGet, "/items", policy.Public},
		{http.MethodGet, "/items/", policy.Public},
		{http.MethodGet, "/items/42", policy.Public},
		{http.MethodGet, "/items/42/claims", policy.Authenticated},
		{http.MethodPost, "/items", policy.Authenticated},
		{http.MethodDelete, "/items/42", policy.Authenticated},
		{http.MethodOptions, "/items/42", policy.Public},
		{http.MethodOptions, "/profile", policy.Public},
		{http.MethodGet, "/profile", policy.Authenticated},
		{http.MethodGet, "/", policy.Authenticated},
		{http.MethodGet, "/auth/register/../../profile", policy.Authenticated},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Evaluate(tt.method, tt.path))
		})
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	p, err := policy.New(
		policy.Rule{Method: http.MethodGet, Pattern: "/items/secret", Requirement: policy.Authenticated},
		policy.Rule{Method: http.MethodGet, Pattern: "/items/*", Requirement: policy.Public},
	)
	require.NoError(t, err)

	assert.Equal(t, policy.Authenticated, p.Evaluate(http.MethodGet, "/items/secret"))
	assert.Equal(t, policy.Public, p.Evaluate(http.MethodGet, "/items/other"))
}

func TestEvaluate_EmptyPolicyRequiresAuthentication(t *testing.T) {
	p, err := policy.New()
	require.NoError(t, err)

	assert.Equal(t, policy.Authenticated, p.Evaluate(http.MethodGet, "/anything"))
	assert.Equal(t, policy.Public, p.Evaluate(http.MethodOptions, "/anything"))
}

func TestNew_RejectsBadPatterns(t *testing.T) {
	_, err := policy.New(policy.Rule{Pattern: "items"})
	assert.Error(t, err)

	_, err = policy.New(policy.Rule{Pattern: "/items/[", Requirement: policy.Public})
	assert.Error(t, err)
}

func TestRequirement_String(t *testing.T) {
	assert.Equal(t, "public", policy.Public.String())
	assert.Equal(t, "authenticated", policy.Authenticated.String())
}
