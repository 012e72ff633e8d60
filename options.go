package ldapauth

import (
	"log/slog"

	"github.com/netresearch/simple-ldap-auth/internal/metrics"
)

// Option represents a functional option for configuring a Verifier.
type Option func(*Verifier)

// WithLogger sets the structured logger. slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithDialer replaces the go-ldap dialer, mainly for tests.
func WithDialer(dialer Dialer) Option {
	return func(v *Verifier) {
		if dialer != nil {
			v.dialer = dialer
		}
	}
}

// WithRecorder sets the metrics recorder. Metrics are discarded otherwise.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(v *Verifier) {
		if recorder != nil {
			v.recorder = recorder
		}
	}
}

// WithLastMatchWins accepts searches returning several entries and binds as
// the last one the server streamed. By default such searches fail with
// ErrAmbiguousAccount.
func WithLastMatchWins() Option {
	return func(v *Verifier) {
		v.lastMatchWins = true
	}
}
