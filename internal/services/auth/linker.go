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
)

// linkAttempts bounds how often Link re-resolves after losing a race on a
// unique constraint.
const linkAttempts = 3

// FederatedIdentity is an identity asserted by the external provider.
// EmailVerified is nil when the provider made no claim.
type FederatedIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified *bool
}

// Linker reconciles federated identities with stored accounts.
type Linker struct {
	store AccountStore
}

// NewLinker creates a Linker on top of store.
func NewLinker(store AccountStore) *Linker {
	return &Linker{store: store}
}

// Link resolves id to exactly one account, creating or updating it as
// needed, and persists the result with a single save.
//
// The store's unique constraints decide races: when a concurrent login
// created or claimed the same identity first, the save fails with a
// duplicate and the resolution starts over so the winner's record is used.
func (l *Linker) Link(ctx context.Context, id FederatedIdentity) (*models.Account, error) {
	if id.Subject == "" || id.Email == "" {
		return nil, fmt.Errorf("%w: federated subject and email are required", ErrInvalidInput)
	}

	var lastErr error
	for attempt := 1; attempt <= linkAttempts; attempt++ {
		acc, err := l.resolve(ctx, id)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		lastErr = err
		slog.Debug("federated_link_retry", "subject", id.Subject, "attempt", attempt)
	}

	slog.Warn("federated_link_conflict", "subject", id.Subject, "email", id.Email)
	return nil, fmt.Errorf("%w: %w", ErrConflict, lastErr)
}

func (l *Linker) resolve(ctx context.Context, id FederatedIdentity) (*models.Account, error) {
	acc, err := l.store.FindAccountByFederatedID(ctx, id.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by federated id: %w", err)
	}

	event := "federated_login"
	switch {
	case acc != nil:
		if acc.Email != id.Email {
			slog.Info("federated_email_changed", "account_id", acc.ID, "old_email", acc.Email, "new_email", id.Email)
			acc.Email = id.Email
		}
	default:
		acc, err = l.store.FindAccountByEmail(ctx, id.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find account by email: %w", err)
		}
		if acc != nil {
			acc.SetFederatedID(id.Subject)
			event = "account_linked"
		} else {
			name := id.Name
			if name == "" {
				name = models.DefaultDisplayName(id.Email)
			}
			acc = &models.Account{
				Email:       id.Email,
				DisplayName: name,
				Role:        models.RoleUser,
			}
			acc.SetFederatedID(id.Subject)
			event = "account_created"
		}
	}

	// An account reachable through the provider is trusted as verified.
	if (id.EmailVerified != nil && *id.EmailVerified) || acc.IsFederated() {
		acc.EmailVerified = true
	}

	if err := l.store.SaveAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	slog.Info(event, "account_id", acc.ID, "email", acc.Email)
	return acc, nil
}

// RequireVerified is the verification gate: no token may be issued for an
// account whose email has not been verified.
func RequireVerified(acc *models.Account) error {
	if acc == nil || !acc.EmailVerified {
		return ErrEmailNotVerified
	}
	return nil
}
