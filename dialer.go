package ldapauth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"

	"github.com/go-ldap/ldap/v3"
)

// Session is a live directory connection authenticated as at most one
// identity. *ldap.Conn satisfies it.
type Session interface {
	Bind(username, password string) error
	SearchAsync(ctx context.Context, searchRequest *ldap.SearchRequest, bufferSize int) ldap.Response
	Unbind() error
	Close() error
}

// Dialer opens new sessions to an endpoint. Every session it returns is
// owned by the caller, who must release it.
type Dialer interface {
	Dial(ctx context.Context, endpoint *Endpoint) (Session, error)
}

// StandardDialer dials real servers with go-ldap.
type StandardDialer struct{}

// NewStandardDialer returns a StandardDialer.
func NewStandardDialer() *StandardDialer {
	return &StandardDialer{}
}

// Dial connects to endpoint.Server, applies the dial and operation timeouts,
// and upgrades the connection with StartTLS when configured.
func (d *StandardDialer) Dial(ctx context.Context, endpoint *Endpoint) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialOpts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: endpoint.DialTimeout}),
	}
	if endpoint.TLSConfig != nil {
		dialOpts = append(dialOpts, ldap.DialWithTLSConfig(endpoint.TLSConfig))
	}

	conn, err := ldap.DialURL(endpoint.Server, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial LDAP server: %w", err)
	}
	conn.SetTimeout(endpoint.OperationTimeout)

	if endpoint.StartTLS {
		if err := conn.StartTLS(startTLSConfig(endpoint)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	return conn, nil
}

// startTLSConfig returns the endpoint TLS config, or a config verifying the
// server hostname when none was given.
func startTLSConfig(endpoint *Endpoint) *tls.Config {
	if endpoint.TLSConfig != nil {
		return endpoint.TLSConfig
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if u, err := url.Parse(endpoint.Server); err == nil {
		cfg.ServerName = u.Hostname()
	}
	return cfg
}
