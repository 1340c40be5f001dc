// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
)

// CreateEmailVerificationToken creates a new email verification token.
func (r *Repository) CreateEmailVerificationToken(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO email_verification_tokens (account_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)`),
		accountID, tokenHash, expiresAt.UTC(), time.Now().UTC())
	return wrapError(err)
}

// GetEmailVerificationToken retrieves an email verification token by hash.
func (r *Repository) GetEmailVerificationToken(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	var token models.EmailVerificationToken
	err := r.db.GetContext(ctx, &token,
		r.rebind(`SELECT id, account_id, token_hash, expires_at, created_at FROM email_verification_tokens WHERE token_hash = ?`),
		tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// DeleteAccountEmailVerificationTokens deletes all tokens for an account.
func (r *Repository) DeleteAccountEmailVerificationTokens(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM email_verification_tokens WHERE account_id = ?`), accountID)
	return err
}

// DeleteExpiredEmailVerificationTokens deletes expired tokens and returns how many were removed.
func (r *Repository) DeleteExpiredEmailVerificationTokens(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM email_verification_tokens WHERE expires_at < ?`), time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
