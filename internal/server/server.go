// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/lostfound-auth/internal/config"
	"codeberg.org/oliverandrich/lostfound-auth/internal/database"
	"codeberg.org/oliverandrich/lostfound-auth/internal/handlers"
	"codeberg.org/oliverandrich/lostfound-auth/internal/i18n"
	"codeberg.org/oliverandrich/lostfound-auth/internal/policy"
	"codeberg.org/oliverandrich/lostfound-auth/internal/repository"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/auth"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/email"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/federation"
	"codeberg.org/oliverandrich/lostfound-auth/internal/services/token"
)

// tokenPurgeInterval is how often expired verification tokens are deleted.
const tokenPurgeInterval = time.Hour

// Deps are the components the HTTP layer is built from.
type Deps struct {
	Config   *config.Config
	Repo     *repository.Repository
	Tokens   *token.Manager
	Auth     *auth.Service
	Verifier handlers.IdentityVerifier // nil unless federation is enabled
	Policy   *policy.Policy
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	tokens, err := newTokenManager(cfg)
	if err != nil {
		return err
	}

	opts := []auth.Option{
		auth.WithPasswordValidator(auth.NewPasswordValidator(cfg.Password.MinLength)),
	}
	if cfg.SMTP.Enabled() {
		mailer, mailErr := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
		if mailErr != nil {
			return fmt.Errorf("failed to set up mail: %w", mailErr)
		}
		opts = append(opts, auth.WithMailer(mailer))
		slog.Info("verification mail enabled", "smtp_host", cfg.SMTP.Host)
	} else {
		slog.Warn("SMTP not configured, password accounts must be verified out of band")
	}

	deps := Deps{
		Config: cfg,
		Repo:   repo,
		Tokens: tokens,
		Auth:   auth.NewService(repo, auth.NewHasher(cfg.Password.BcryptCost), tokens, opts...),
		Policy: policy.Default(),
	}

	if cfg.Federation.Enabled() {
		verifier, fedErr := federation.NewVerifier(cfg.Federation)
		if fedErr != nil {
			return fmt.Errorf("failed to set up federation: %w", fedErr)
		}
		defer verifier.Close()
		deps.Verifier = verifier
		slog.Info("federated ID token verification enabled", "issuer", cfg.Federation.Issuer)
	} else {
		slog.Warn("federation JWKS URL not set, federated-login trusts client-supplied identities")
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeExpiredTokens(purgeCtx, repo, tokenPurgeInterval)

	return startWithGracefulShutdown(New(deps), cfg)
}

// newTokenManager builds the bearer token manager. On localhost an empty
// secret is replaced by a random one.
func newTokenManager(cfg *config.Config) (*token.Manager, error) {
	secret := []byte(cfg.Token.Secret)
	if len(secret) == 0 {
		var err error
		if secret, err = token.RandomSecret(); err != nil {
			return nil, err
		}
		slog.Warn("no token secret configured, using a random one; tokens will not survive restarts")
	}

	tokens, err := token.NewManager(secret, cfg.Token.TTL, cfg.Token.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tokens: %w", err)
	}
	return tokens, nil
}

// New builds the echo instance with middleware and routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, d)
	setupRoutes(e, d)

	return e
}

func setupRoutes(e *echo.Echo, d Deps) {
	h := handlers.New(d.Auth, d.Verifier)

	e.Static("/uploads", d.Config.Server.UploadsDir)

	e.GET("/health", h.Health)

	g := e.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/federated-login", h.FederatedLogin)
	g.POST("/reset-password", h.ResetPassword)
	g.GET("/verify-email", h.VerifyEmail)
	g.POST("/verify-email/resend", h.ResendVerification)
	g.GET("/me", h.Me)
}

func purgeExpiredTokens(ctx context.Context, repo *repository.Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpiredEmailVerificationTokens(ctx)
			if err != nil {
				slog.Error("failed to purge verification tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged verification tokens", "count", n)
			}
		}
	}
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	// Setup TLS
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	// Channel for server errors
	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP→HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
