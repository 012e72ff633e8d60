// Package testutil provides an in-memory directory implementing
// ldapauth.Dialer, with call recording and fault injection for tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-ldap/ldap/v3"

	ldapauth "github.com/netresearch/simple-ldap-auth"
)

// Ensure interfaces are satisfied at compile time
var (
	_ ldapauth.Dialer  = (*MockDirectory)(nil)
	_ ldapauth.Session = (*MockSession)(nil)
	_ ldap.Response    = (*mockResponse)(nil)
)

// MockAccount is an entry the directory can find and authenticate
type MockAccount struct {
	DN       string
	Name     string
	Password string
}

// BindCall records a bind operation
type BindCall struct {
	Session  int
	Username string
	Password string
	Error    error
}

// SearchCall records a search operation
type SearchCall struct {
	Session int
	Request *ldap.SearchRequest
	Entries int
	Error   error
}

// MockDirectory is an in-memory directory server. Every Dial returns a new
// MockSession numbered from 1. The zero value is not usable, see NewMockDirectory.
type MockDirectory struct {
	mu sync.Mutex

	// Directory content
	ServiceDN        string
	ServicePassword  string
	AccountAttribute string
	Accounts         []MockAccount
	Referrals        []string

	// Fault injection
	DialErr          error // every Dial fails
	FailDialAt       int   // only the n-th Dial fails with DialErr, 0 means every Dial
	SearchErr        error // the search stream ends with this error after its entries
	CandidateBindErr error // every non-service bind fails with this error
	BlockBinds       bool  // binds block until the session is closed

	// State tracking
	BindCalls   []BindCall
	SearchCalls []SearchCall
	Events      []string
	dials       int
	opened      int
	closed      int
}

// NewMockDirectory returns a directory with one service account and no users.
func NewMockDirectory(serviceDN, servicePassword string) *MockDirectory {
	return &MockDirectory{
		ServiceDN:        serviceDN,
		ServicePassword:  servicePassword,
		AccountAttribute: ldapauth.DefaultAccountAttribute,
	}
}

// AddAccount adds a user entry.
func (d *MockDirectory) AddAccount(dn, name, password string) *MockDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Accounts = append(d.Accounts, MockAccount{DN: dn, Name: name, Password: password})
	return d
}

// Dial implements ldapauth.Dialer.
func (d *MockDirectory) Dial(ctx context.Context, _ *ldapauth.Endpoint) (ldapauth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.DialErr != nil && (d.FailDialAt == 0 || d.FailDialAt == d.dials) {
		d.Events = append(d.Events, fmt.Sprintf("dial_failed:%d", d.dials))
		return nil, d.DialErr
	}

	d.opened++
	s := &MockSession{id: d.opened, dir: d, done: make(chan struct{})}
	d.Events = append(d.Events, fmt.Sprintf("open:%d", s.id))
	return s, nil
}

// Opened returns the number of sessions handed out.
func (d *MockDirectory) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Closed returns the number of sessions that were closed or unbound.
func (d *MockDirectory) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Binds returns a copy of the recorded bind calls.
func (d *MockDirectory) Binds() []BindCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]BindCall(nil), d.BindCalls...)
}

// Searches returns a copy of the recorded search calls.
func (d *MockDirectory) Searches() []SearchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SearchCall(nil), d.SearchCalls...)
}

// EventLog returns a copy of the ordered event log, e.g.
// ["open:1", "bind:1", "search:1", "unbind:1", "open:2", "bind:2", "unbind:2"].
func (d *MockDirectory) EventLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Events...)
}

// Reset clears recorded calls and counters, keeping content and faults.
func (d *MockDirectory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.BindCalls = nil
	d.SearchCalls = nil
	d.Events = nil
	d.dials = 0
	d.opened = 0
	d.closed = 0
}

func (d *MockDirectory) bind(s *MockSession, username, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	switch {
	case username == "" || password == "":
		err = ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("empty credentials"))
	case strings.EqualFold(username, d.ServiceDN):
		if password != d.ServicePassword {
			err = ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid password"))
		}
	case d.CandidateBindErr != nil:
		err = d.CandidateBindErr
	default:
		err = ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
		for _, acc := range d.Accounts {
			if strings.EqualFold(acc.DN, username) && acc.Password == password {
				err = nil
				break
			}
		}
	}

	if err == nil {
		s.boundAs = username
	}
	d.BindCalls = append(d.BindCalls, BindCall{Session: s.id, Username: username, Password: password, Error: err})
	d.Events = append(d.Events, fmt.Sprintf("bind:%d", s.id))
	return err
}

// equalityPattern extracts (attr=value) components from a filter
var equalityPattern = regexp.MustCompile(`\(([A-Za-z0-9.;-]+)=((?:[^()\\]|\\[0-9a-fA-F]{2})*)\)`)

func (d *MockDirectory) search(s *MockSession, req *ldap.SearchRequest) *mockResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := &mockResponse{}
	switch {
	case !strings.EqualFold(s.boundAs, d.ServiceDN):
		res.err = ldap.NewError(ldap.LDAPResultInsufficientAccessRights, errors.New("search requires the service account"))
	default:
		name, ok := d.accountName(req.Filter)
		for _, acc := range d.Accounts {
			if ok && strings.EqualFold(acc.Name, name) && inSubtree(acc.DN, req.BaseDN) {
				res.items = append(res.items, ldap.NewEntry(acc.DN, map[string][]string{}))
			}
		}
		for _, ref := range d.Referrals {
			res.items = append(res.items, ref)
		}
		res.err = d.SearchErr
	}

	d.SearchCalls = append(d.SearchCalls, SearchCall{Session: s.id, Request: req, Entries: res.entries(), Error: res.err})
	d.Events = append(d.Events, fmt.Sprintf("search:%d", s.id))
	return res
}

// accountName returns the unescaped value matched against AccountAttribute
func (d *MockDirectory) accountName(filter string) (string, bool) {
	for _, m := range equalityPattern.FindAllStringSubmatch(filter, -1) {
		if strings.EqualFold(m[1], d.AccountAttribute) {
			return unescapeFilterValue(m[2]), true
		}
	}
	return "", false
}

func (d *MockDirectory) release(s *MockSession, how string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	d.closed++
	d.Events = append(d.Events, fmt.Sprintf("%s:%d", how, s.id))
}

func inSubtree(dn, base string) bool {
	return strings.HasSuffix(strings.ToLower(dn), strings.ToLower(base))
}

func unescapeFilterValue(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && i+2 < len(v) {
			if c, err := strconv.ParseUint(v[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(c))
				i += 2
				continue
			}
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

// MockSession is one connection to a MockDirectory.
type MockSession struct {
	id      int
	dir     *MockDirectory
	boundAs string
	closed  bool
	done    chan struct{}
}

// ID returns the 1-based session number.
func (s *MockSession) ID() int { return s.id }

// Bind implements ldapauth.Session.
func (s *MockSession) Bind(username, password string) error {
	if s.isClosed() {
		return ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: connection closed"))
	}
	if s.dir.blocking() {
		<-s.done
		return ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: connection closed"))
	}
	return s.dir.bind(s, username, password)
}

// SearchAsync implements ldapauth.Session.
func (s *MockSession) SearchAsync(ctx context.Context, req *ldap.SearchRequest, _ int) ldap.Response {
	if s.isClosed() {
		return &mockResponse{err: ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: connection closed"))}
	}
	if err := ctx.Err(); err != nil {
		return &mockResponse{err: err}
	}
	return s.dir.search(s, req)
}

// Unbind implements ldapauth.Session.
func (s *MockSession) Unbind() error {
	if s.isClosed() {
		return ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: connection closing"))
	}
	s.dir.release(s, "unbind")
	return nil
}

// Close implements ldapauth.Session.
func (s *MockSession) Close() error {
	s.dir.release(s, "close")
	return nil
}

func (s *MockSession) isClosed() bool {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()
	return s.closed
}

func (d *MockDirectory) blocking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.BlockBinds
}

// mockResponse replays a fixed result stream. Items are *ldap.Entry or a
// referral string.
type mockResponse struct {
	items []any
	pos   int
	cur   any
	err   error
	done  bool
}

func (r *mockResponse) Next() bool {
	if r.done {
		return false
	}
	if r.pos >= len(r.items) {
		r.done = true
		r.cur = nil
		return false
	}
	r.cur = r.items[r.pos]
	r.pos++
	return true
}

func (r *mockResponse) Entry() *ldap.Entry {
	e, _ := r.cur.(*ldap.Entry)
	return e
}

func (r *mockResponse) Referral() string {
	ref, _ := r.cur.(string)
	return ref
}

func (r *mockResponse) Controls() []ldap.Control { return nil }

func (r *mockResponse) Err() error {
	if !r.done {
		return nil
	}
	return r.err
}

func (r *mockResponse) entries() int {
	n := 0
	for _, it := range r.items {
		if _, ok := it.(*ldap.Entry); ok {
			n++
		}
	}
	return n
}
