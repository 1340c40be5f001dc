// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"codeberg.org/oliverandrich/lostfound-auth/internal/config"
	"codeberg.org/oliverandrich/lostfound-auth/internal/i18n"
)

const (
	// TokenLength is the number of random bytes for verification tokens.
	TokenLength = 32
	// TokenExpiry is how long verification tokens are valid.
	TokenExpiry = 24 * time.Hour
)

// Sender delivers prepared messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSend(messages ...*mail.Msg) error
}

// Service sends verification mail over SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
	sender  Sender
}

// NewService creates a new email service backed by a go-mail client.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating mail client: %w", err)
	}

	return NewServiceWithSender(cfg, baseURL, client)
}

// NewServiceWithSender creates an email service that hands messages to sender.
func NewServiceWithSender(cfg *config.SMTPConfig, baseURL string, sender Sender) (*Service, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sender:  sender,
	}, nil
}

func checkConfig(cfg *config.SMTPConfig) error {
	if cfg.Host == "" {
		return errors.New("SMTP host is required")
	}
	if cfg.From == "" {
		return errors.New("SMTP from address is required")
	}
	return nil
}

// GenerateToken generates a new verification token valid from now.
// Returns (plaintext token, SHA256 hash for storage, expiry time, error).
func GenerateToken(now time.Time) (string, string, time.Time, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext := hex.EncodeToString(bytes)
	return plaintext, HashToken(plaintext), now.Add(TokenExpiry), nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// VerifyURL returns the link a recipient follows to verify their address.
func (s *Service) VerifyURL(token string) string {
	return fmt.Sprintf("%s/auth/verify-email?token=%s", s.baseURL, url.QueryEscape(token))
}

// SendVerification sends a verification email with the given token.
func (s *Service) SendVerification(ctx context.Context, toEmail, token string) error {
	msg, err := s.verificationMessage(ctx, toEmail, token)
	if err != nil {
		return err
	}

	if err := s.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

func (s *Service) verificationMessage(ctx context.Context, to, token string) (*mail.Msg, error) {
	subject := i18n.T(ctx, "email_verification_subject")
	body := i18n.TData(ctx, "email_verification_body", map[string]any{
		"VerifyURL": s.VerifyURL(token),
	})

	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func clientOptions(cfg *config.SMTPConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	return opts
}
