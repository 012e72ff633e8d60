// Package config loads the service configuration from the environment and an
// optional .env file.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ldapauth "github.com/netresearch/simple-ldap-auth"
)

// Multi-match policies
const (
	MultiMatchReject = "reject"
	MultiMatchLast   = "last"
)

// Log formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// DefaultEnvFile is read by Load when no file is given.
const DefaultEnvFile = ".env"

// Config is the complete service configuration.
type Config struct {
	LDAP    LDAPConfig
	HTTP    HTTPConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// LDAPConfig describes the directory and the service account.
type LDAPConfig struct {
	URL                string
	BindDN             string
	BindPassword       string
	BaseDN             string
	AccountAttribute   string
	ObjectClass        string
	StartTLS           bool
	InsecureSkipVerify bool
	DialTimeout        time.Duration
	OperationTimeout   time.Duration
	MultiMatch         string // "reject" or "last"
}

// HTTPConfig describes the inbound HTTP surface.
type HTTPConfig struct {
	Addr           string
	RequestTimeout time.Duration
	CORSOrigins    []string
	MaxBodyBytes   int64
}

// MetricsConfig toggles the Prometheus recorder and /metrics.
type MetricsConfig struct {
	Enabled bool
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// Load reads files (DefaultEnvFile when none given) and the process
// environment. Non-empty process variables win over file values and the process
// environment is never modified. A missing DefaultEnvFile is not an error; an
// explicitly named file must exist. All invalid or missing keys are reported
// in one joined error.
func Load(files ...string) (*Config, error) {
	fileValues, err := readEnvFiles(files)
	if err != nil {
		return nil, err
	}

	return build(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	})
}

func readEnvFiles(files []string) (map[string]string, error) {
	optional := len(files) == 0
	if optional {
		files = []string{DefaultEnvFile}
	}

	values, err := godotenv.Read(files...)
	switch {
	case err == nil:
		return values, nil
	case optional && errors.Is(err, fs.ErrNotExist):
		return map[string]string{}, nil
	default:
		return nil, fmt.Errorf("config: failed to read env file: %w", err)
	}
}

// build assembles a Config from lookup.
func build(lookup func(string) (string, bool)) (*Config, error) {
	var errs []error
	root := env{lookup: lookup, errs: &errs}

	ldapEnv := root.Prefix("LDAP_")
	httpEnv := root.Prefix("HTTP_")

	cfg := &Config{
		LDAP: LDAPConfig{
			URL:                ldapEnv.Require("URL"),
			BindDN:             ldapEnv.Require("BIND_DN"),
			BindPassword:       ldapEnv.Secret("BIND_PASSWORD"),
			BaseDN:             ldapEnv.Require("BASE_DN"),
			AccountAttribute:   ldapEnv.Get("ACCOUNT_ATTRIBUTE", ldapauth.DefaultAccountAttribute),
			ObjectClass:        ldapEnv.Get("OBJECT_CLASS", ""),
			StartTLS:           ldapEnv.Bool("START_TLS", false),
			InsecureSkipVerify: ldapEnv.Bool("INSECURE_SKIP_VERIFY", false),
			DialTimeout:        ldapEnv.Duration("DIAL_TIMEOUT", ldapauth.DefaultDialTimeout),
			OperationTimeout:   ldapEnv.Duration("OPERATION_TIMEOUT", ldapauth.DefaultOperationTimeout),
			MultiMatch:         ldapEnv.OneOf("MULTI_MATCH", MultiMatchReject, MultiMatchReject, MultiMatchLast),
		},
		HTTP: HTTPConfig{
			Addr:           httpEnv.Get("ADDR", ":4000"),
			RequestTimeout: httpEnv.Duration("REQUEST_TIMEOUT", 15*time.Second),
			CORSOrigins:    httpEnv.List("CORS_ORIGINS", []string{"*"}),
			MaxBodyBytes:   int64(httpEnv.Int("MAX_BODY_BYTES", 1<<20)),
		},
		Metrics: MetricsConfig{
			Enabled: root.Bool("METRICS_ENABLED", true),
		},
		Log: LogConfig{
			Level:  parseLevel(root, "LOG_LEVEL"),
			Format: root.OneOf("LOG_FORMAT", LogFormatJSON, LogFormatJSON, LogFormatText),
		},
	}

	if cfg.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_MAX_BODY_BYTES: must be positive, got %d", cfg.HTTP.MaxBodyBytes))
	}

	if len(errs) == 0 {
		if err := cfg.Endpoint().Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parseLevel(e env, key string) slog.Level {
	v := e.Get(key, "info")
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		e.fail(key, "invalid log level %q", v)
		return slog.LevelInfo
	}
	return level
}

// Endpoint builds the directory endpoint. Each call returns a fresh value.
func (c *Config) Endpoint() *ldapauth.Endpoint {
	ep := &ldapauth.Endpoint{
		Server:           c.LDAP.URL,
		BindDN:           c.LDAP.BindDN,
		BindPassword:     c.LDAP.BindPassword,
		BaseDN:           c.LDAP.BaseDN,
		AccountAttribute: c.LDAP.AccountAttribute,
		ObjectClass:      c.LDAP.ObjectClass,
		StartTLS:         c.LDAP.StartTLS,
		DialTimeout:      c.LDAP.DialTimeout,
		OperationTimeout: c.LDAP.OperationTimeout,
	}
	if c.LDAP.InsecureSkipVerify {
		// #nosec G402 -- opt-in for lab directories with self-signed certificates
		ep.TLSConfig = &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}
	}
	return ep
}

// VerifierOptions returns the verifier options implied by the configuration.
func (c *Config) VerifierOptions() []ldapauth.Option {
	var opts []ldapauth.Option
	if c.LDAP.MultiMatch == MultiMatchLast {
		opts = append(opts, ldapauth.WithLastMatchWins())
	}
	return opts
}

// NewLogger builds the process logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level}
	if strings.EqualFold(c.Format, LogFormatText) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
