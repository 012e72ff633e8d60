package ldapauth

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// searchBufferSize is the channel size of the async search stream
const searchBufferSize = 8

// accountSearchRequest builds the subtree search for a single account name.
// Only the DN is needed, so no attributes are requested beyond it.
func (v *Verifier) accountSearchRequest(username string) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		v.endpoint.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(v.endpoint.OperationTimeout.Seconds()),
		false,
		accountFilter(v.endpoint.AccountAttribute, v.endpoint.ObjectClass, username),
		[]string{"dn"},
		nil,
	)
}

// accountFilter returns (attr=username), ANDed with the object class when set.
// The username is escaped so that it can never widen the filter.
func accountFilter(attribute, objectClass, username string) string {
	match := fmt.Sprintf("(%s=%s)", attribute, ldap.EscapeFilter(username))
	if objectClass == "" {
		return match
	}
	return fmt.Sprintf("(&(objectClass=%s)%s)", objectClass, match)
}

// collectDNs drains the search stream and returns the DN of every entry in
// the order the server sent them. Referrals are skipped. An error reported
// by the stream discards any entries already seen.
func collectDNs(ctx context.Context, sess Session, req *ldap.SearchRequest) ([]string, error) {
	res := sess.SearchAsync(ctx, req, searchBufferSize)

	var dns []string
	for res.Next() {
		if entry := res.Entry(); entry != nil {
			dns = append(dns, entry.DN)
		}
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	return dns, nil
}
