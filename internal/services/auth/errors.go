// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import "errors"

// Error kinds returned by the service. Anything else is unexpected.
var (
	ErrConflict           = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrNotFound           = errors.New("account not found")
	ErrInvalidInput       = errors.New("invalid input")
)
