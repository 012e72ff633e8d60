// Package ldapauth verifies user credentials against an LDAP or Active
// Directory server using the bind-search-bind exchange.
//
// A Verifier holds an immutable Endpoint: the server URL, a service account
// allowed to search the directory, and the base DN under which user accounts
// live. Each call to Verify performs the full exchange from scratch:
//
//  1. bind as the service account
//  2. search the subtree below the base DN for the account name
//  3. release the service session, then bind as the resolved DN with the
//     caller supplied password
//
// Nothing is cached between calls and a Verifier is safe for concurrent use.
//
// # Basic Usage
//
//	endpoint := &ldapauth.Endpoint{
//		Server:       "ldaps://dc01.example.com:636",
//		BindDN:       "cn=svc-portal,ou=service,dc=example,dc=com",
//		BindPassword: os.Getenv("LDAP_BIND_PASSWORD"),
//		BaseDN:       "dc=example,dc=com",
//	}
//
//	verifier, err := ldapauth.NewVerifier(endpoint)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	outcome, err := verifier.Verify(ctx, "jdoe", "password")
//	if outcome != ldapauth.OutcomeAuthenticated {
//		log.Printf("login rejected (%s): %v", outcome, err)
//	}
//
// # Error Handling
//
// Verify always returns an Outcome together with an error describing the
// failure. The error wraps one of the sentinel errors, so errors.Is works:
//   - ErrMissingCredentials, ErrInvalidUsername: caller input, nothing dialed
//   - ErrDirectoryUnavailable: the service bind or the transport failed
//   - ErrSearchFailed: the account search errored (ErrAmbiguousAccount for multiple matches)
//   - ErrUserNotFound: the search returned no entry
//   - ErrInvalidCredentials: the directory rejected the password
//
// Errors from the directory itself are wrapped in *LDAPError, which carries
// the operation, DN, server, and LDAP result code.
package ldapauth
