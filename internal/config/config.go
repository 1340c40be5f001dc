// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"
)

var (
	configPath = "config.toml"
	configFile = altsrc.NewStringPtrSourcer(&configPath)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
	Database   DatabaseConfig   `toml:"database"`
	TLS        TLSConfig        `toml:"tls"`
	Token      TokenConfig      `toml:"token"`
	Password   PasswordConfig   `toml:"password"`
	Federation FederationConfig `toml:"federation"`
	SMTP       SMTPConfig       `toml:"smtp"`
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	BaseURL     string   `toml:"base_url"`
	MaxBodySize int      `toml:"max_body_size"` // in MB
	UploadsDir  string   `toml:"uploads_dir"`
	CORSOrigins []string `toml:"cors_origins"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

type DatabaseConfig struct {
	DSN string `toml:"dsn"`
}

type TLSConfig struct {
	Mode     string `toml:"mode"`      // auto, acme, manual, off
	CertDir  string `toml:"cert_dir"`  // ACME certificate cache
	Email    string `toml:"email"`     // ACME email for Let's Encrypt
	CertFile string `toml:"cert_file"` // manual mode
	KeyFile  string `toml:"key_file"`  // manual mode
}

// TokenConfig controls bearer token issuance.
type TokenConfig struct {
	Secret string        `toml:"secret"`
	TTL    time.Duration `toml:"ttl"`
	Issuer string        `toml:"issuer"`
}

// PasswordConfig controls the password policy and hashing cost.
type PasswordConfig struct {
	MinLength  int `toml:"min_length"`
	BcryptCost int `toml:"bcrypt_cost"`
}

// FederationConfig enables verification of identity-provider ID tokens.
// Leaving JWKSURL empty makes the federated-login endpoint trust the
// identity fields posted by the client.
type FederationConfig struct {
	JWKSURL  string `toml:"jwks_url"`
	Issuer   string `toml:"issuer"`
	Audience string `toml:"audience"`
}

// Enabled reports whether ID tokens are verified.
func (f FederationConfig) Enabled() bool {
	return f.JWKSURL != ""
}

// SMTPConfig configures outgoing verification mail. An empty Host disables mail.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	TLS      bool   `toml:"tls"`
}

// Enabled reports whether an SMTP host is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
			UploadsDir:  cmd.String("uploads-dir"),
			CORSOrigins: cmd.StringSlice("cors-origins"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Token: TokenConfig{
			Secret: cmd.String("token-secret"),
			TTL:    cmd.Duration("token-ttl"),
			Issuer: cmd.String("token-issuer"),
		},
		Password: PasswordConfig{
			MinLength:  int(cmd.Int("password-min-length")),
			BcryptCost: int(cmd.Int("bcrypt-cost")),
		},
		Federation: FederationConfig{
			JWKSURL:  cmd.String("federation-jwks-url"),
			Issuer:   cmd.String("federation-issuer"),
			Audience: cmd.String("federation-audience"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Token.Secret == "" && !IsLocalhost(c.Server.Host) {
		errs = append(errs, errors.New("token secret is required when not bound to localhost"))
	}
	if c.Token.Secret != "" && len(c.Token.Secret) < 32 {
		errs = append(errs, errors.New("token secret must be at least 32 bytes"))
	}

	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("password min length must be at least 1"))
	}
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	switch strings.ToLower(c.TLS.Mode) {
	case "", "auto", "off", "acme", "manual":
	default:
		errs = append(errs, fmt.Errorf("unknown TLS mode %q", c.TLS.Mode))
	}
	if strings.EqualFold(c.TLS.Mode, "manual") && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("manual TLS mode requires both cert file and key file"))
	}

	if c.SMTP.Enabled() && c.SMTP.From == "" {
		errs = append(errs, errors.New("smtp from address is required when smtp host is set"))
	}

	if c.Federation.Enabled() && c.Federation.Audience == "" {
		errs = append(errs, errors.New("federation audience is required when a JWKS URL is set"))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	if out.Token.Secret != "" {
		out.Token.Secret = "********"
	}
	if out.SMTP.Password != "" {
		out.SMTP.Password = "********"
	}
	return &out
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "uploads-dir",
			Value:   "./data/uploads",
			Usage:   "Directory served publicly under /uploads",
			Sources: source("UPLOADS_DIR", "server.uploads_dir"),
		},
		&cli.StringSliceFlag{
			Name:    "cors-origins",
			Value:   []string{"http://localhost:5173"},
			Usage:   "Allowed CORS origins",
			Sources: source("CORS_ORIGINS", "server.cors_origins"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for ACME certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		// Token flags
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "HMAC secret for bearer tokens (at least 32 bytes, random if empty on localhost)",
			Sources: source("TOKEN_SECRET", "token.secret"),
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Bearer token lifetime",
			Sources: source("TOKEN_TTL", "token.ttl"),
		},
		&cli.StringFlag{
			Name:    "token-issuer",
			Value:   "lostfound",
			Usage:   "Issuer claim of bearer tokens",
			Sources: source("TOKEN_ISSUER", "token.issuer"),
		},
		// Password flags
		&cli.IntFlag{
			Name:    "password-min-length",
			Value:   8,
			Usage:   "Minimum password length",
			Sources: source("PASSWORD_MIN_LENGTH", "password.min_length"),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   bcrypt.DefaultCost,
			Usage:   "bcrypt cost factor",
			Sources: source("BCRYPT_COST", "password.bcrypt_cost"),
		},
		// Federation flags
		&cli.StringFlag{
			Name:    "federation-jwks-url",
			Usage:   "JWKS URL of the identity provider (enables ID token verification)",
			Sources: source("FEDERATION_JWKS_URL", "federation.jwks_url"),
		},
		&cli.StringFlag{
			Name:    "federation-issuer",
			Usage:   "Expected issuer of identity-provider ID tokens",
			Sources: source("FEDERATION_ISSUER", "federation.issuer"),
		},
		&cli.StringFlag{
			Name:    "federation-audience",
			Usage:   "Expected audience of identity-provider ID tokens",
			Sources: source("FEDERATION_AUDIENCE", "federation.audience"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host for verification mail (disabled if empty)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Lost & Found",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
	}
}
