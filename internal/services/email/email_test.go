// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"

	"codeberg.org/oliverandrich/lostfound-auth/internal/config"
	"codeberg.org/oliverandrich/lostfound-auth/internal/i18n"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/email"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type recordingSender struct {
	msgs []*mail.Msg
	err  error
}

func (r *recordingSender) DialAndSend(messages ...*mail.Msg) error {
	r.msgs = append(r.msgs, messages...)
	return r.err
}

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Lost & Found",
		TLS:      true,
	}
}

func TestNewService(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig(), "https://example.com")

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestVerifyURL_TrailingSlashTrimmed(t *testing.T) {
	svc, err := email.NewServiceWithSender(validSMTPConfig(), "https://example.com/", &recordingSender{})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/auth/verify-email?token=abc", svc.VerifyURL("abc"))
}

func TestSendVerification(t *testing.T) {
	sender := &recordingSender{}
	svc, err := email.NewServiceWithSender(validSMTPConfig(), "https://example.com", sender)
	require.NoError(t, err)

	err = svc.SendVerification(context.Background(), "alice@example.com", "tok123")
	require.NoError(t, err)

	require.Len(t, sender.msgs, 1)
	to := sender.msgs[0].GetToString()
	require.Len(t, to, 1)
	assert.Contains(t, to[0], "alice@example.com")

	subject := sender.msgs[0].GetGenHeader(mail.HeaderSubject)
	require.Len(t, subject, 1)
	assert.Equal(t, "Verify your email address", subject[0])

	parts := sender.msgs[0].GetParts()
	require.Len(t, parts, 1)
	body, err := parts[0].GetContent()
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://example.com/auth/verify-email?token=tok123")
}

func TestSendVerification_Localized(t *testing.T) {
	sender := &recordingSender{}
	svc, err := email.NewServiceWithSender(validSMTPConfig(), "https://example.com", sender)
	require.NoError(t, err)

	ctx := i18n.WithLocale(context.Background(), language.German)
	require.NoError(t, svc.SendVerification(ctx, "bob@example.com", "tok"))

	subject := sender.msgs[0].GetGenHeader(mail.HeaderSubject)
	require.Len(t, subject, 1)
	assert.Equal(t, "Bestätige deine E-Mail-Adresse", subject[0])
}

func TestSendVerification_SenderError(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	svc, err := email.NewServiceWithSender(validSMTPConfig(), "https://example.com", sender)
	require.NoError(t, err)

	err = svc.SendVerification(context.Background(), "alice@example.com", "tok")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendVerification_InvalidRecipient(t *testing.T) {
	sender := &recordingSender{}
	svc, err := email.NewServiceWithSender(validSMTPConfig(), "https://example.com", sender)
	require.NoError(t, err)

	err = svc.SendVerification(context.Background(), "not an address", "tok")

	require.Error(t, err)
	assert.Empty(t, sender.msgs)
}

func TestGenerateToken(t *testing.T) {
	now := time.Now()

	plaintext, hash, expiresAt, err := email.GenerateToken(now)

	require.NoError(t, err)

	// Plaintext should be 64 hex chars (32 bytes)
	assert.Len(t, plaintext, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, plaintext, hash)
	assert.Equal(t, email.HashToken(plaintext), hash)
	assert.Equal(t, now.Add(24*time.Hour), expiresAt)
}

func TestGenerateToken_Unique(t *testing.T) {
	tokens := make(map[string]bool)

	for range 10 {
		plaintext, _, _, err := email.GenerateToken(time.Now())
		require.NoError(t, err)

		assert.False(t, tokens[plaintext], "duplicate token generated")
		tokens[plaintext] = true
	}
}

func TestHashToken(t *testing.T) {
	token := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	hash := email.HashToken(token)

	assert.Len(t, hash, 64)
	assert.Equal(t, hash, email.HashToken(token))
	assert.NotEqual(t, hash, email.HashToken("token2"))
}
