package ldapauth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netresearch/simple-ldap-auth/internal/metrics"
)

// Verifier checks usernames and passwords against a directory. It holds no
// mutable state, so one Verifier serves any number of concurrent calls.
type Verifier struct {
	endpoint      Endpoint
	dialer        Dialer
	logger        *slog.Logger
	recorder      metrics.Recorder
	lastMatchWins bool
}

// NewVerifier validates endpoint and creates a Verifier for it. The endpoint
// is copied; no connection is opened until the first Verify call.
func NewVerifier(endpoint *Endpoint, opts ...Option) (*Verifier, error) {
	if endpoint == nil {
		return nil, configurationError("endpoint cannot be nil", nil)
	}

	ep := endpoint.withDefaults()
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	v := &Verifier{
		endpoint: ep,
		dialer:   NewStandardDialer(),
		logger:   slog.Default(),
		recorder: metrics.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With(slog.String("component", "verifier"))

	v.logger.Info("verifier_initialized",
		slog.Any("endpoint", v.endpoint),
		slog.Bool("last_match_wins", v.lastMatchWins))

	return v, nil
}

// Endpoint returns a copy of the endpoint the Verifier was built with.
func (v *Verifier) Endpoint() Endpoint {
	return v.endpoint
}

// openSession dials a new session and returns it with its release function.
// The session is closed as soon as ctx is done, which unblocks any pending
// bind or search. release is safe to call more than once.
func (v *Verifier) openSession(ctx context.Context, role string) (Session, func(), error) {
	start := time.Now()

	sess, err := v.dialer.Dial(ctx, &v.endpoint)
	if err != nil {
		v.logger.Debug("ldap_session_dial_failed",
			slog.String("role", role),
			slog.String("server", v.endpoint.Server),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, nil, err
	}
	v.recorder.SessionOpened()

	stop := context.AfterFunc(ctx, func() {
		_ = sess.Close()
	})

	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			if err := sess.Unbind(); err != nil {
				v.logger.Debug("ldap_unbind_failed",
					slog.String("role", role),
					slog.String("error", err.Error()))
			}
			_ = sess.Close()
			v.recorder.SessionReleased()
		})
	}

	v.logger.Debug("ldap_session_opened",
		slog.String("role", role),
		slog.String("server", v.endpoint.Server),
		slog.Duration("duration", time.Since(start)))

	return sess, release, nil
}
