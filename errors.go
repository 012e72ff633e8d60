package ldapauth

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Sentinel errors, one per verification outcome.
var (
	// Caller input errors
	ErrMissingCredentials = errors.New("ldapauth: username and password are required")
	ErrInvalidUsername    = errors.New("ldapauth: invalid username")

	// Directory subsystem errors
	ErrDirectoryUnavailable = errors.New("ldapauth: directory unavailable")
	ErrSearchFailed         = errors.New("ldapauth: account search failed")
	ErrAmbiguousAccount     = errors.New("ldapauth: account name matches multiple entries")

	// Credential verdicts
	ErrUserNotFound       = errors.New("ldapauth: user not found")
	ErrInvalidCredentials = errors.New("ldapauth: invalid credentials")

	// ErrInvalidEndpoint is returned by Endpoint.Validate and NewVerifier.
	ErrInvalidEndpoint = errors.New("ldapauth: invalid endpoint")
)

// LDAPError represents an error returned by a directory operation, enriched
// with the context needed for debugging.
type LDAPError struct {
	// Op is the operation name (e.g., "ServiceBind", "AccountSearch")
	Op string
	// DN is the distinguished name involved in the operation (if applicable)
	DN string
	// Server is the LDAP server URL
	Server string
	// Code is the LDAP result code, 0 when the error did not come from the server
	Code int
	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *LDAPError) Error() string {
	if e.DN != "" {
		return fmt.Sprintf("ldap %s failed for DN %q on server %q: %v", e.Op, e.DN, e.Server, e.Err)
	}
	return fmt.Sprintf("ldap %s failed on server %q: %v", e.Op, e.Server, e.Err)
}

// Unwrap returns the underlying error.
func (e *LDAPError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *LDAPError for the same operation and
// result code, or matches the wrapped error.
func (e *LDAPError) Is(target error) bool {
	if ldapErr, ok := target.(*LDAPError); ok {
		return e.Op == ldapErr.Op && e.Code == ldapErr.Code
	}
	return errors.Is(e.Err, target)
}

// NewLDAPError creates an *LDAPError, copying the result code out of err when
// it is a go-ldap error.
func NewLDAPError(op, server string, err error) *LDAPError {
	e := &LDAPError{
		Op:     op,
		Server: server,
		Err:    err,
	}
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		e.Code = int(ldapErr.ResultCode)
	}
	return e
}

// WithDN adds a distinguished name to the error.
func (e *LDAPError) WithDN(dn string) *LDAPError {
	e.DN = dn
	return e
}

// IsConnectionError reports whether err was caused by the transport rather
// than by a verdict of the directory server.
func IsConnectionError(err error) bool {
	if errors.Is(err, ErrDirectoryUnavailable) {
		return true
	}
	return hasResultCode(err,
		ldap.ErrorNetwork,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeout,
	)
}

// IsInvalidCredentialsCode reports whether err carries the LDAP
// invalidCredentials (49) result code.
func IsInvalidCredentialsCode(err error) bool {
	return hasResultCode(err, ldap.LDAPResultInvalidCredentials)
}

// hasResultCode unwraps err down to the go-ldap error before comparing codes.
func hasResultCode(err error, codes ...uint16) bool {
	var ldapErr *ldap.Error
	if !errors.As(err, &ldapErr) {
		return false
	}
	return ldap.IsErrorAnyOf(ldapErr, codes...)
}
