// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// Role is the coarse permission level of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a person who can authenticate, either with a password,
// through a federated identity provider, or both.
type Account struct { //nolint:govet // fieldalignment: readability over optimization
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  *string   `db:"password_hash" json:"-"`
	FederatedID   *string   `db:"federated_id" json:"-"`
	DisplayName   string    `db:"display_name" json:"name"`
	Role          Role      `db:"role" json:"role"`
	EmailVerified bool      `db:"email_verified" json:"emailVerified"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// HasPassword reports whether the account can log in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// IsFederated reports whether the account is linked to an identity provider.
func (a *Account) IsFederated() bool {
	return a.FederatedID != nil && *a.FederatedID != ""
}

// SetPasswordHash stores hash as the account's password hash.
func (a *Account) SetPasswordHash(hash string) {
	a.PasswordHash = &hash
}

// SetFederatedID links the account to the given federated subject.
func (a *Account) SetFederatedID(id string) {
	a.FederatedID = &id
}

// DefaultDisplayName derives a display name from the local part of an email.
func DefaultDisplayName(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}
