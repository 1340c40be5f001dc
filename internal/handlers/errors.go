// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/lostfound-auth/internal/services/auth"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/federation"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  validation.Errors `json:"fields,omitempty"`
	Details []string          `json:"details,omitempty"`
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}

// respondError decodes a service error into its fixed HTTP response.
// Unexpected errors are logged and answered without detail.
func respondError(c echo.Context, err error) error {
	var fieldErrs validation.Errors
	var pwErr *auth.PasswordValidationError

	switch {
	case errors.As(err, &fieldErrs):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid input", Fields: fieldErrs})
	case errors.As(err, &pwErr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid password", Details: pwErr.Messages()})
	case errors.Is(err, auth.ErrConflict):
		return jsonError(c, http.StatusConflict, "Email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return jsonError(c, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, auth.ErrEmailNotVerified):
		return c.JSON(http.StatusForbidden, errorResponse{
			Error:   "EMAIL_NOT_VERIFIED",
			Message: "Please verify your email before logging in.",
		})
	case errors.Is(err, auth.ErrNotFound):
		return jsonError(c, http.StatusBadRequest, "User not found")
	case errors.Is(err, auth.ErrInvalidInput):
		return jsonError(c, http.StatusBadRequest, inputMessage(err))
	case errors.Is(err, federation.ErrInvalidToken):
		return jsonError(c, http.StatusUnauthorized, "Invalid identity token")
	}

	slog.ErrorContext(c.Request().Context(), "request_failed",
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"error", err,
	)
	return jsonError(c, http.StatusInternalServerError, "Internal server error")
}

// inputMessage strips the "invalid input: " prefix of wrapped input errors.
func inputMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, auth.ErrInvalidInput.Error()+": "); ok {
		msg = rest
	}
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req validation.Validatable) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: malformed request body", auth.ErrInvalidInput)
	}
	return req.Validate()
}
