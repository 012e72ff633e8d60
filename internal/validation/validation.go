// Package validation checks directory configuration values and normalizes
// caller supplied usernames before they reach an LDAP filter.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"unicode"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxDNLength defines the maximum length for Distinguished Names
	MaxDNLength = 8000
	// MaxUsernameLength defines the maximum length, in runes, of a username
	MaxUsernameLength = 256
)

// attributeNamePattern matches an RFC 4512 descriptor or numeric OID
var attributeNamePattern = regexp.MustCompile(`^(?:[A-Za-z][A-Za-z0-9-]*|[0-9]+(?:\.[0-9]+)+)$`)

// ValidateServerURL validates LDAP server URL format
func ValidateServerURL(serverURL string) error {
	if serverURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "ldap" && u.Scheme != "ldaps" {
		return fmt.Errorf("invalid scheme %q: must be 'ldap' or 'ldaps'", u.Scheme)
	}

	if u.Hostname() == "" {
		return errors.New("URL must contain a hostname")
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port %q: expected 1..65535", p)
		}
	}

	return nil
}

// ValidateDN validates the syntax of a Distinguished Name
func ValidateDN(dn string) error {
	if dn == "" {
		return errors.New("DN cannot be empty")
	}

	if len(dn) > MaxDNLength {
		return fmt.Errorf("DN too long: %d characters (max %d)", len(dn), MaxDNLength)
	}

	if containsControl(dn) {
		return errors.New("DN contains control characters")
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return fmt.Errorf("DN format invalid: %w", err)
	}
	if len(parsed.RDNs) == 0 {
		return errors.New("DN format invalid: no components")
	}

	return nil
}

// ValidateAttributeName checks an attribute or object class name
func ValidateAttributeName(name string) error {
	if name == "" {
		return errors.New("attribute name cannot be empty")
	}
	if !attributeNamePattern.MatchString(name) {
		return fmt.Errorf("invalid attribute name %q", name)
	}
	return nil
}

// NormalizeUsername returns the NFC form of name. Case is preserved, the
// directory server decides whether matching is case sensitive.
func NormalizeUsername(name string) (string, error) {
	if name == "" {
		return "", errors.New("username cannot be empty")
	}

	normalized := norm.NFC.String(name)

	if n := len([]rune(normalized)); n > MaxUsernameLength {
		return "", fmt.Errorf("username too long: %d characters (max %d)", n, MaxUsernameLength)
	}

	if containsControl(normalized) {
		return "", errors.New("username contains control characters")
	}

	return normalized, nil
}

func containsControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
