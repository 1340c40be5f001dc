// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
)

const accountColumns = `id, email, password_hash, federated_id, display_name, role, email_verified, created_at, updated_at`

// FindAccountByEmail returns the account with the given email, or nil if none exists.
func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

// FindAccountByFederatedID returns the account linked to the given federated
// subject, or nil if none exists.
func (r *Repository) FindAccountByFederatedID(ctx context.Context, federatedID string) (*models.Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE federated_id = ?`, federatedID)
}

// GetAccountByID retrieves an account by id. Unlike the Find methods a miss is ErrNotFound.
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	acc, err := r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrNotFound
	}
	return acc, nil
}

func (r *Repository) findAccount(ctx context.Context, query string, arg any) (*models.Account, error) {
	var acc models.Account
	err := r.db.GetContext(ctx, &acc, r.rebind(query), arg)
	if err != nil {
		if errors.Is(wrapError(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acc, nil
}

// AccountExistsByEmail checks if an account with the given email exists.
func (r *Repository) AccountExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, r.rebind(`SELECT count(*) FROM accounts WHERE email = ?`), email)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveAccount inserts acc when it has no id yet, otherwise updates its
// mutable columns. id, role and created_at are never changed by an update.
func (r *Repository) SaveAccount(ctx context.Context, acc *models.Account) error {
	if !acc.HasPassword() && !acc.IsFederated() {
		return ErrIncompleteAccount
	}
	if acc.ID == "" {
		return r.insertAccount(ctx, acc)
	}
	return r.updateAccount(ctx, acc)
}

func (r *Repository) insertAccount(ctx context.Context, acc *models.Account) error {
	now := time.Now().UTC()
	created := *acc
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Role == "" {
		created.Role = models.RoleUser
	}

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		created.ID, created.Email, created.PasswordHash, created.FederatedID, created.DisplayName,
		created.Role, created.EmailVerified, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", wrapError(err))
	}

	*acc = created
	return nil
}

func (r *Repository) updateAccount(ctx context.Context, acc *models.Account) error {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE accounts
		SET email = ?, password_hash = ?, federated_id = ?, display_name = ?, email_verified = ?, updated_at = ?
		WHERE id = ?`),
		acc.Email, acc.PasswordHash, acc.FederatedID, acc.DisplayName, acc.EmailVerified, now, acc.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", wrapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	acc.UpdatedAt = now
	return nil
}
