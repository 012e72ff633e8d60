package ldapauth

import (
	"fmt"
)

// Error helpers keep the wrapping consistent: every error carries exactly one
// outcome sentinel plus the directory error that caused it.

// unavailableError wraps a dial, service bind, or cancellation failure
func unavailableError(op, server, dn string, err error) error {
	return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, NewLDAPError(op, server, err).WithDN(dn))
}

// searchError wraps a failure reported by the search result stream
func searchError(server, baseDN string, err error) error {
	return fmt.Errorf("%w: %w", ErrSearchFailed, NewLDAPError("AccountSearch", server, err).WithDN(baseDN))
}

// ambiguousError reports a search that resolved to more than one entry
func ambiguousError(matches int) error {
	return fmt.Errorf("%w: %w: %d entries matched", ErrSearchFailed, ErrAmbiguousAccount, matches)
}

// notFoundError reports a search that resolved to no entry. The username is
// left out, error strings end up in logs.
func notFoundError(baseDN string) error {
	return fmt.Errorf("%w below %q", ErrUserNotFound, baseDN)
}

// credentialsError wraps a rejected candidate bind
func credentialsError(server, dn string, err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidCredentials, NewLDAPError("CandidateBind", server, err).WithDN(dn))
}

// configurationError reports an invalid endpoint field
func configurationError(field string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEndpoint, field, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidEndpoint, field)
}
