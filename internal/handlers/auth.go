// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/lostfound-auth/internal/appcontext"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/auth"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/federation"
	"codeberg.org/oliverandrich/lostfound-auth/internal/templates"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r *registerRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Name, validation.Length(0, 100)),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// federatedLoginRequest carries either a provider ID token or, when no
// verifier is configured, the identity fields the client read from the
// provider. "uid" is accepted as an alias of "providerId".
type federatedLoginRequest struct {
	Email         string          `json:"email"`
	ProviderID    string          `json:"providerId"`
	UID           string          `json:"uid"`
	Name          string          `json:"name"`
	EmailVerified federation.Flag `json:"emailVerified"`
	IDToken       string          `json:"idToken"`

	requireIDToken bool
}

func (r *federatedLoginRequest) subject() string {
	if r.ProviderID != "" {
		return r.ProviderID
	}
	return r.UID
}

func (r *federatedLoginRequest) Validate() error {
	if r.requireIDToken {
		return validation.ValidateStruct(r,
			validation.Field(&r.IDToken, validation.Required),
		)
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.ProviderID, validation.By(func(any) error {
			if r.subject() == "" {
				return errors.New("cannot be blank")
			}
			return nil
		})),
	)
}

func (r *federatedLoginRequest) identity() auth.FederatedIdentity {
	return auth.FederatedIdentity{
		Subject:       r.subject(),
		Email:         r.Email,
		Name:          r.Name,
		EmailVerified: r.EmailVerified.Ptr(),
	}
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

func (r *resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

func (r *resendVerificationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Register creates an unverified password account.
func (h *Handlers) Register(c echo.Context) error {
	req := new(registerRequest)
	if err := bind(c, req); err != nil {
		return respondError(c, err)
	}

	if _, err := h.auth.Register(c.Request().Context(), auth.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"status":  "PENDING_VERIFICATION",
		"message": "Registration successful. Please verify your email before logging in.",
	})
}

// Login exchanges email and password for a bearer token.
func (h *Handlers) Login(c echo.Context) error {
	req := new(loginRequest)
	if err := bind(c, req); err != nil {
		return respondError(c, err)
	}

	token, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{Token: token, Message: "Login successful"})
}

// FederatedLogin exchanges a federated identity for a bearer token.
func (h *Handlers) FederatedLogin(c echo.Context) error {
	req := &federatedLoginRequest{requireIDToken: h.verifier != nil}
	if err := bind(c, req); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	id := req.identity()
	if h.verifier != nil {
		verified, err := h.verifier.Verify(ctx, req.IDToken)
		if err != nil {
			slog.WarnContext(ctx, "federated_login_failed", "reason", "invalid_id_token", "error", err)
			return respondError(c, err)
		}
		id = verified
	}

	token, _, err := h.auth.FederatedLogin(ctx, id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, tokenResponse{Token: token, Message: "Federated login successful"})
}

// ResetPassword replaces the password of an account.
func (h *Handlers) ResetPassword(c echo.Context) error {
	req := new(resetPasswordRequest)
	if err := bind(c, req); err != nil {
		return respondError(c, err)
	}

	if err := h.auth.ResetPassword(c.Request().Context(), req.Email, req.NewPassword); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset successful"})
}

// VerifyEmail consumes a verification link and renders the result page.
func (h *Handlers) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()

	_, err := h.auth.VerifyEmail(ctx, c.QueryParam("token"))
	switch {
	case err == nil:
		return Render(c, http.StatusOK, templates.VerifyEmail(true))
	case errors.Is(err, auth.ErrInvalidInput):
		return Render(c, http.StatusBadRequest, templates.VerifyEmail(false))
	default:
		slog.ErrorContext(ctx, "verify_email_failed", "error", err)
		return Render(c, http.StatusInternalServerError, templates.VerifyEmail(false))
	}
}

// ResendVerification mails a fresh verification link. The response does
// not reveal whether the address belongs to an account.
func (h *Handlers) ResendVerification(c echo.Context) error {
	req := new(resendVerificationRequest)
	if err := bind(c, req); err != nil {
		return respondError(c, err)
	}

	if err := h.auth.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "If the address belongs to an unverified account, a new link has been sent.",
	})
}

// Me returns the account of the authenticated principal.
func (h *Handlers) Me(c echo.Context) error {
	p := appcontext.Wrap(c).GetPrincipal()
	if p == nil {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}

	acc, err := h.auth.Account(c.Request().Context(), p.Email)
	if errors.Is(err, auth.ErrNotFound) {
		return jsonError(c, http.StatusUnauthorized, "Unauthorized")
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, acc)
}
