package ldapauth

import (
	"errors"
)

// Outcome is the result of a credential verification.
type Outcome int

const (
	// OutcomeUnknown is the zero value. Verify never returns it.
	OutcomeUnknown Outcome = iota
	// OutcomeInvalidRequest means the caller supplied an empty or malformed
	// username or password. The directory was not contacted.
	OutcomeInvalidRequest
	// OutcomeAuthenticated means the directory accepted the password.
	OutcomeAuthenticated
	// OutcomeInvalidCredentials means the account exists but the candidate
	// bind failed.
	OutcomeInvalidCredentials
	// OutcomeUserNotFound means the account search returned no entry.
	OutcomeUserNotFound
	// OutcomeDirectoryUnavailable means the service bind or the transport
	// failed, or the call was cancelled.
	OutcomeDirectoryUnavailable
	// OutcomeSearchFailed means the account search itself errored.
	OutcomeSearchFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeUnknown:              "unknown",
	OutcomeInvalidRequest:       "invalid_request",
	OutcomeAuthenticated:        "authenticated",
	OutcomeInvalidCredentials:   "invalid_credentials",
	OutcomeUserNotFound:         "user_not_found",
	OutcomeDirectoryUnavailable: "directory_unavailable",
	OutcomeSearchFailed:         "search_failed",
}

// String returns the snake_case label used in logs and metrics.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// IsCredentialRejection reports whether the outcome must be presented to the
// end user as "invalid username or password". UserNotFound and
// InvalidCredentials are deliberately indistinguishable outside the process.
func (o Outcome) IsCredentialRejection() bool {
	return o == OutcomeInvalidCredentials || o == OutcomeUserNotFound
}

// IsDirectoryFault reports whether the outcome indicates an unhealthy
// directory subsystem rather than a verdict about the credentials.
func (o Outcome) IsDirectoryFault() bool {
	return o == OutcomeDirectoryUnavailable || o == OutcomeSearchFailed
}

// OutcomeOf maps an error returned by Verify back to its Outcome. A nil error
// means OutcomeAuthenticated; errors that carry no known sentinel are treated
// as a directory fault.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAuthenticated
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrInvalidUsername):
		return OutcomeInvalidRequest
	case errors.Is(err, ErrDirectoryUnavailable):
		return OutcomeDirectoryUnavailable
	case errors.Is(err, ErrSearchFailed):
		return OutcomeSearchFailed
	case errors.Is(err, ErrUserNotFound):
		return OutcomeUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	default:
		return OutcomeDirectoryUnavailable
	}
}
