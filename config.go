package ldapauth

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/netresearch/simple-ldap-auth/internal/validation"
)

const (
	// DefaultAccountAttribute is the attribute matched against the username.
	DefaultAccountAttribute = "sAMAccountName"
	// DefaultDialTimeout bounds the TCP (and TLS) handshake of every session.
	DefaultDialTimeout = 5 * time.Second
	// DefaultOperationTimeout bounds every bind and search request.
	DefaultOperationTimeout = 10 * time.Second
)

// Endpoint describes the directory a Verifier talks to. It is built once at
// startup and copied into the Verifier, so later changes to the value passed
// to NewVerifier have no effect.
type Endpoint struct {
	// Server is the LDAP URL, e.g. "ldaps://dc01.example.com:636"
	Server string
	// BindDN and BindPassword identify the service account used to search
	BindDN       string
	BindPassword string
	// BaseDN roots the subtree searched for user accounts
	BaseDN string
	// AccountAttribute is matched against the username, DefaultAccountAttribute if empty
	AccountAttribute string
	// ObjectClass optionally restricts the search, e.g. "user" or "inetOrgPerson"
	ObjectClass string

	// StartTLS upgrades plain ldap:// sessions before binding
	StartTLS bool
	// TLSConfig is used for ldaps:// and StartTLS
	TLSConfig *tls.Config

	DialTimeout      time.Duration
	OperationTimeout time.Duration
}

// withDefaults returns a copy of e with zero values replaced by defaults.
func (e Endpoint) withDefaults() Endpoint {
	if e.AccountAttribute == "" {
		e.AccountAttribute = DefaultAccountAttribute
	}
	if e.DialTimeout <= 0 {
		e.DialTimeout = DefaultDialTimeout
	}
	if e.OperationTimeout <= 0 {
		e.OperationTimeout = DefaultOperationTimeout
	}
	if e.TLSConfig != nil {
		e.TLSConfig = e.TLSConfig.Clone()
	}
	return e
}

// Validate checks every field and returns all problems joined together.
// Each returned error wraps ErrInvalidEndpoint.
func (e *Endpoint) Validate() error {
	var errs []error

	if err := validation.ValidateServerURL(e.Server); err != nil {
		errs = append(errs, configurationError("server", err))
	} else if e.StartTLS {
		if u, _ := url.Parse(e.Server); u != nil && u.Scheme == "ldaps" {
			errs = append(errs, configurationError("start_tls", errors.New("StartTLS cannot be combined with ldaps://")))
		}
	}

	if err := validation.ValidateDN(e.BindDN); err != nil {
		errs = append(errs, configurationError("bind_dn", err))
	}
	if e.BindPassword == "" {
		errs = append(errs, configurationError("bind_password", errors.New("cannot be empty")))
	}
	if err := validation.ValidateDN(e.BaseDN); err != nil {
		errs = append(errs, configurationError("base_dn", err))
	}

	if e.AccountAttribute != "" {
		if err := validation.ValidateAttributeName(e.AccountAttribute); err != nil {
			errs = append(errs, configurationError("account_attribute", err))
		}
	}
	if e.ObjectClass != "" {
		if err := validation.ValidateAttributeName(e.ObjectClass); err != nil {
			errs = append(errs, configurationError("object_class", err))
		}
	}

	if e.DialTimeout < 0 {
		errs = append(errs, configurationError("dial_timeout", errors.New("cannot be negative")))
	}
	if e.OperationTimeout < 0 {
		errs = append(errs, configurationError("operation_timeout", errors.New("cannot be negative")))
	}

	return errors.Join(errs...)
}

// LogValue implements slog.LogValuer. The bind password is never logged.
func (e Endpoint) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("server", e.Server),
		slog.String("bind_dn", e.BindDN),
		slog.String("base_dn", e.BaseDN),
		slog.String("account_attribute", e.AccountAttribute),
		slog.Bool("start_tls", e.StartTLS),
	)
}
