// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/lostfound-auth/internal/models"
	"codeberg.org/oliverandrich/lostfound-auth/internal/repository"
)

// AccountStore is the persistence the service needs.
type AccountStore interface {
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	FindAccountByFederatedID(ctx context.Context, federatedID string) (*models.Account, error)
	AccountExistsByEmail(ctx context.Context, email string) (bool, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	SaveAccount(ctx context.Context, acc *models.Account) error

	CreateEmailVerificationToken(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error
	GetEmailVerificationToken(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	DeleteAccountEmailVerificationTokens(ctx context.Context, accountID string) error
}

// TokenIssuer issues bearer tokens for a subject email.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// Mailer delivers verification links.
type Mailer interface {
	SendVerification(ctx context.Context, toEmail, token string) error
}

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	store             AccountStore
	hasher            *Hasher
	tokens            TokenIssuer
	linker            *Linker
	passwordValidator *PasswordValidator
	mailer            Mailer
	now               func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMailer enables verification mail on registration.
func WithMailer(m Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

// WithPasswordValidator replaces the default password policy.
func WithPasswordValidator(v *PasswordValidator) Option {
	return func(s *Service) {
		s.passwordValidator = v
	}
}

// WithClock overrides the time source used for verification-token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store AccountStore, hasher *Hasher, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:             store,
		hasher:            hasher,
		tokens:            tokens,
		linker:            NewLinker(store),
		passwordValidator: NewPasswordValidator(8),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams holds the parameters for account registration
type RegisterParams struct {
	Email    string
	Password string
	Name     string
}

// Register creates an unverified password account. It never issues a token.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Account, error) {
	addr, err := mail.ParseAddress(params.Email)
	if err != nil || addr.Address != params.Email {
		return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}

	if err := s.passwordValidator.Check(params.Password, params.Email, params.Name); err != nil {
		return nil, err
	}

	exists, err := s.store.AccountExistsByEmail(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if exists {
		slog.Warn("register_failed", "email", params.Email, "reason", "email_exists")
		return nil, ErrConflict
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	name := params.Name
	if name == "" {
		name = models.DefaultDisplayName(params.Email)
	}

	acc := &models.Account{
		Email:       params.Email,
		DisplayName: name,
		Role:        models.RoleUser,
	}
	acc.SetPasswordHash(passwordHash)

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("register_success", "account_id", acc.ID, "email", acc.Email)

	if s.mailer != nil {
		if err := s.sendVerification(ctx, acc); err != nil {
			slog.Error("verification_mail_failed", "account_id", acc.ID, "error", err)
		}
	}

	return acc, nil
}

// Login authenticates a password account and returns a bearer token.
// Unknown accounts and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to get account: %w", err)
	}

	if acc == nil || !acc.HasPassword() {
		// Constant-time: always perform bcrypt comparison to prevent timing attacks
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		slog.Warn("login_failed", "email", email, "reason", "no_password_account")
		return "", ErrInvalidCredentials
	}

	if err := RequireVerified(acc); err != nil {
		slog.Warn("login_failed", "account_id", acc.ID, "reason", "email_not_verified")
		return "", err
	}

	if !s.hasher.Verify(password, *acc.PasswordHash) {
		slog.Warn("login_failed", "account_id", acc.ID, "reason", "invalid_password")
		return "", ErrInvalidCredentials
	}

	token, err := s.issue(acc)
	if err != nil {
		return "", err
	}

	slog.Info("login_success", "account_id", acc.ID)
	return token, nil
}

// FederatedLogin links the identity to an account and returns a bearer token
// once the account passes the verification gate.
func (s *Service) FederatedLogin(ctx context.Context, id FederatedIdentity) (string, *models.Account, error) {
	acc, err := s.linker.Link(ctx, id)
	if err != nil {
		return "", nil, err
	}

	if err := RequireVerified(acc); err != nil {
		slog.Warn("federated_login_failed", "account_id", acc.ID, "reason", "email_not_verified")
		return "", acc, err
	}

	token, err := s.issue(acc)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

// ResetPassword replaces the password of the account with the given email.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	acc, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if acc == nil {
		return ErrNotFound
	}

	if err := s.passwordValidator.Check(newPassword, acc.Email, acc.DisplayName); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	acc.SetPasswordHash(passwordHash)

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password_reset", "account_id", acc.ID)
	return nil
}

// Account returns the account with the given email or ErrNotFound.
func (s *Service) Account(ctx context.Context, email string) (*models.Account, error) {
	acc, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if acc == nil {
		return nil, ErrNotFound
	}
	return acc, nil
}

func (s *Service) issue(acc *models.Account) (string, error) {
	if err := RequireVerified(acc); err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(acc.Email)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}
