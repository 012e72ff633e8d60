package ldapauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/netresearch/simple-ldap-auth/internal/validation"
)

// Verify reports whether username and password denote a valid account.
//
// The service account binds first and searches for the account below the
// base DN. The service session is released before a second, independent
// session binds as the resolved DN with password. Both sessions are released
// on every return path, including cancellation of ctx.
//
// The returned error is nil only for OutcomeAuthenticated; otherwise it
// wraps the sentinel error for the outcome.
func (v *Verifier) Verify(ctx context.Context, username, password string) (Outcome, error) {
	start := time.Now()

	err := v.verify(ctx, username, password)
	outcome := OutcomeOf(err)

	v.observe(ctx, username, outcome, err, time.Since(start))

	return outcome, err
}

func (v *Verifier) verify(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	name, err := validation.NormalizeUsername(username)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUsername, err)
	}

	dn, err := v.resolveAccount(ctx, name)
	if err != nil {
		return err
	}

	return v.bindCandidate(ctx, dn, password)
}

// resolveAccount binds as the service account and returns the DN of the
// account named username. The service session is released before returning.
func (v *Verifier) resolveAccount(ctx context.Context, username string) (string, error) {
	server := v.endpoint.Server

	sess, release, err := v.openSession(ctx, "service")
	if err != nil {
		return "", unavailableError("Dial", server, "", err)
	}
	defer release()

	if err := sess.Bind(v.endpoint.BindDN, v.endpoint.BindPassword); err != nil {
		return "", unavailableError("ServiceBind", server, v.endpoint.BindDN, contextCause(ctx, err))
	}

	dns, err := collectDNs(ctx, sess, v.accountSearchRequest(username))
	if err != nil {
		if ctx.Err() != nil {
			return "", unavailableError("AccountSearch", server, v.endpoint.BaseDN, contextCause(ctx, err))
		}
		return "", searchError(server, v.endpoint.BaseDN, err)
	}

	switch {
	case len(dns) == 0:
		return "", notFoundError(v.endpoint.BaseDN)
	case len(dns) > 1 && !v.lastMatchWins:
		return "", ambiguousError(len(dns))
	case len(dns) > 1:
		v.logger.Warn("account_search_multiple_matches",
			slog.String("username_masked", maskSensitiveData(username)),
			slog.Int("matches", len(dns)),
			slog.String("selected_dn", dns[len(dns)-1]))
	}

	return dns[len(dns)-1], nil
}

// bindCandidate proves password for dn on a fresh session.
func (v *Verifier) bindCandidate(ctx context.Context, dn, password string) error {
	server := v.endpoint.Server

	sess, release, err := v.openSession(ctx, "candidate")
	if err != nil {
		if ctx.Err() != nil {
			return unavailableError("Dial", server, dn, contextCause(ctx, err))
		}
		return credentialsError(server, dn, err)
	}
	defer release()

	if err := sess.Bind(dn, password); err != nil {
		if ctx.Err() != nil {
			return unavailableError("CandidateBind", server, dn, contextCause(ctx, err))
		}
		return credentialsError(server, dn, err)
	}

	return nil
}

// observe logs and records a finished verification. The password is never
// part of the log record and the username is masked.
func (v *Verifier) observe(ctx context.Context, username string, outcome Outcome, err error, duration time.Duration) {
	v.recorder.RecordVerification(outcome.String(), duration)

	attrs := []slog.Attr{
		slog.String("operation", "Verify"),
		slog.String("username_masked", maskSensitiveData(username)),
		slog.String("outcome", outcome.String()),
		slog.Duration("duration", duration),
	}

	if err == nil {
		v.logger.LogAttrs(ctx, slog.LevelInfo, "verification_completed", attrs...)
		return
	}

	level := slog.LevelWarn
	switch {
	case outcome == OutcomeInvalidRequest:
		level = slog.LevelDebug
	case outcome.IsDirectoryFault():
		level = slog.LevelError
	}

	attrs = append(attrs, slog.String("error", err.Error()))
	v.logger.LogAttrs(ctx, level, "verification_failed", attrs...)
}

// contextCause prefers the context error over the transport error it caused.
func contextCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return err
}
