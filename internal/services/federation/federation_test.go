// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package federation_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/lostfound-auth/internal/config"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/federation"
)

const (
	testIssuer   = "https://securetoken.example.com/lostfound"
	testAudience = "lostfound"
	testKID      = "key-1"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKID
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testAudience,
		"sub":            "uid-123",
		"email":          "alice@example.com",
		"email_verified": true,
		"name":           "Alice",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func givenVerifier(key *rsa.PrivateKey) *federation.Verifier {
	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		testKID: keyfunc.NewGivenCustom(&key.PublicKey, keyfunc.GivenKeyOptions{Algorithm: "RS256"}),
	})
	return federation.NewVerifierWithKeyfunc(jwks.Keyfunc, testIssuer, testAudience)
}

func TestVerify(t *testing.T) {
	key := newKey(t)
	v := givenVerifier(key)

	id, err := v.Verify(context.Background(), sign(t, key, validClaims()))

	require.NoError(t, err)
	assert.Equal(t, "uid-123", id.Subject)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "Alice", id.Name)
	require.NotNil(t, id.EmailVerified)
	assert.True(t, *id.EmailVerified)
}

func TestVerify_StringEmailVerified(t *testing.T) {
	key := newKey(t)
	v := givenVerifier(key)

	claims := validClaims()
	claims["email_verified"] = "false"

	id, err := v.Verify(context.Background(), sign(t, key, claims))

	require.NoError(t, err)
	require.NotNil(t, id.EmailVerified)
	assert.False(t, *id.EmailVerified)
}

func TestVerify_AbsentEmailVerified(t *testing.T) {
	key := newKey(t)
	v := givenVerifier(key)

	claims := validClaims()
	delete(claims, "email_verified")

	id, err := v.Verify(context.Background(), sign(t, key, claims))

	require.NoError(t, err)
	assert.Nil(t, id.EmailVerified)
}

func TestVerify_Rejects(t *testing.T) {
	key := newKey(t)
	v := givenVerifier(key)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
	}{
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "other-app" }},
		{"expired", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }},
		{"missing expiry", func(c jwt.MapClaims) { delete(c, "exp") }},
		{"missing subject", func(c jwt.MapClaims) { delete(c, "sub") }},
		{"missing email", func(c jwt.MapClaims) { delete(c, "email") }},
		{"issued in the future", func(c jwt.MapClaims) { c["iat"] = time.Now().Add(time.Hour).Unix() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)

			_, err := v.Verify(context.Background(), sign(t, key, claims))

			assert.ErrorIs(t, err, federation.ErrInvalidToken)
		})
	}
}

func TestVerify_UnknownSigningKey(t *testing.T) {
	v := givenVerifier(newKey(t))

	_, err := v.Verify(context.Background(), sign(t, newKey(t), validClaims()))

	assert.ErrorIs(t, err, federation.ErrInvalidToken)
}

func TestVerify_RejectsHMAC(t *testing.T) {
	v := givenVerifier(newKey(t))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	tok.Header["kid"] = testKID
	signed, err := tok.SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)

	assert.ErrorIs(t, err, federation.ErrInvalidToken)
}

func TestNewVerifier_FetchesJWKS(t *testing.T) {
	key := newKey(t)

	jwk := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwk)
	}))
	defer srv.Close()

	v, err := federation.NewVerifier(config.FederationConfig{
		JWKSURL:  srv.URL,
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	require.NoError(t, err)
	defer v.Close()

	id, err := v.Verify(context.Background(), sign(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "uid-123", id.Subject)
}

func TestNewVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := federation.NewVerifier(config.FederationConfig{JWKSURL: srv.URL, Audience: testAudience})

	assert.Error(t, err)
}
