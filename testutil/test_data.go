package testutil

// Standard fixture identities shared by tests
const (
	ExampleBaseDN          = "dc=example,dc=com"
	ExampleServiceDN       = "cn=svc-ldap-auth,ou=service,dc=example,dc=com"
	ExampleServicePassword = "svc-secret"
)

// ExampleAccount is one seeded account with its plaintext password
type ExampleAccount struct {
	DN       string
	Name     string
	Password string
}

// ExampleAccounts are the accounts NewExampleDirectory seeds
var ExampleAccounts = []ExampleAccount{
	{DN: "cn=admin,ou=users,dc=example,dc=com", Name: "admin", Password: "admin123"},
	{DN: "cn=user1,ou=users,dc=example,dc=com", Name: "user1", Password: "password1"},
	{DN: "cn=Jos\u00e9 Garc\u00eda,ou=users,dc=example,dc=com", Name: "jos\u00e9", Password: "contrase\u00f1a"},
	// lives outside the users OU, still below the base DN
	{DN: "cn=contractor,ou=external,dc=example,dc=com", Name: "contractor", Password: "contract0r"},
}

// NewExampleDirectory returns a MockDirectory with ExampleServiceDN as the
// service account and every ExampleAccounts entry.
func NewExampleDirectory() *MockDirectory {
	d := NewMockDirectory(ExampleServiceDN, ExampleServicePassword)
	for _, acc := range ExampleAccounts {
		d.AddAccount(acc.DN, acc.Name, acc.Password)
	}
	return d
}
