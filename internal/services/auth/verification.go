// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
	"codeberg.org/oliverandrich/lostfound-auth/internal/repository"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/email"
)

// VerificationEnabled reports whether verification mail is sent.
func (s *Service) VerificationEnabled() bool {
	return s.mailer != nil
}

func (s *Service) sendVerification(ctx context.Context, acc *models.Account) error {
	plaintext, hash, expiresAt, err := email.GenerateToken(s.now())
	if err != nil {
		return err
	}

	if err := s.store.CreateEmailVerificationToken(ctx, acc.ID, hash, expiresAt); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.mailer.SendVerification(ctx, acc.Email, plaintext); err != nil {
		return err
	}

	slog.Info("verification_mail_sent", "account_id", acc.ID)
	return nil
}

// VerifyEmail redeems a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing verification token", ErrInvalidInput)
	}

	stored, err := s.store.GetEmailVerificationToken(ctx, email.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown verification token", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}

	if stored.Expired(s.now()) {
		slog.Warn("verify_email_failed", "account_id", stored.AccountID, "reason", "expired")
		return nil, fmt.Errorf("%w: verification token expired", ErrInvalidInput)
	}

	acc, err := s.store.GetAccountByID(ctx, stored.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !acc.EmailVerified {
		acc.EmailVerified = true
		if err := s.store.SaveAccount(ctx, acc); err != nil {
			return nil, fmt.Errorf("failed to mark email verified: %w", err)
		}
	}

	if err := s.store.DeleteAccountEmailVerificationTokens(ctx, acc.ID); err != nil {
		slog.Warn("verification_token_cleanup_failed", "account_id", acc.ID, "error", err)
	}

	slog.Info("email_verified", "account_id", acc.ID)
	return acc, nil
}

// ResendVerification sends a fresh verification link. Unknown and already
// verified addresses succeed silently so the endpoint reveals nothing.
func (s *Service) ResendVerification(ctx context.Context, address string) error {
	if s.mailer == nil {
		return nil
	}

	acc, err := s.store.FindAccountByEmail(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if acc == nil || acc.EmailVerified {
		return nil
	}

	if err := s.store.DeleteAccountEmailVerificationTokens(ctx, acc.ID); err != nil {
		return fmt.Errorf("failed to delete old tokens: %w", err)
	}
	return s.sendVerification(ctx, acc)
}
