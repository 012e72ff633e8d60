package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapauth "github.com/netresearch/simple-ldap-auth"
	"github.com/netresearch/simple-ldap-auth/internal/config"
	"github.com/netresearch/simple-ldap-auth/internal/metrics"
	"github.com/netresearch/simple-ldap-auth/testutil"
)

// stubAuth returns a fixed outcome and records its calls
type stubAuth struct {
	mu       sync.Mutex
	outcome  ldapauth.Outcome
	err      error
	calls    []string
	deadline bool
	panicMsg string
}

func (a *stubAuth) Verify(ctx context.Context, username, password string) (ldapauth.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.panicMsg != "" {
		panic(a.panicMsg)
	}
	_, a.deadline = ctx.Deadline()
	a.calls = append(a.calls, username+":"+password)
	if a.outcome == ldapauth.OutcomeAuthenticated {
		return a.outcome, nil
	}
	if a.err != nil {
		return a.outcome, a.err
	}
	return a.outcome, errors.New(a.outcome.String())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(auth Authenticator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return New(config.HTTPConfig{
		Addr:           "127.0.0.1:0",
		RequestTimeout: 2 * time.Second,
		CORSOrigins:    []string{"https://ui.example.com"},
		MaxBodyBytes:   1 << 10,
	}, auth, opts)
}

func postLogin(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, authResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, LoginRoute, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec, resp
}

func TestLogin_OutcomeMapping(t *testing.T) {
	tests := []struct {
		outcome ldapauth.Outcome
		status  int
		message string
	}{
		{ldapauth.OutcomeAuthenticated, http.StatusOK, ""},
		{ldapauth.OutcomeInvalidCredentials, http.StatusUnauthorized, messageRejected},
		{ldapauth.OutcomeUserNotFound, http.StatusUnauthorized, messageRejected},
		{ldapauth.OutcomeDirectoryUnavailable, http.StatusInternalServerError, messageUnavailable},
		{ldapauth.OutcomeSearchFailed, http.StatusInternalServerError, messageUnavailable},
		{ldapauth.OutcomeInvalidRequest, http.StatusBadRequest, messageMissingCredentials},
		{ldapauth.OutcomeUnknown, http.StatusInternalServerError, messageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			auth := &stubAuth{outcome: tt.outcome}
			s := newTestServer(auth, Options{})

			rec, resp := postLogin(t, s.Handler(), `{"username":"alice","password":"secret123"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.outcome == ldapauth.OutcomeAuthenticated, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.True(t, auth.deadline, "verification runs under the request timeout")
		})
	}
}

func TestLogin_SuccessBodyOmitsMessage(t *testing.T) {
	s := newTestServer(&stubAuth{outcome: ldapauth.OutcomeAuthenticated}, Options{})

	req := httptest.NewRequest(http.MethodPost, LoginRoute, strings.NewReader(`{"username":"a","password":"b"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestLogin_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"missing password", `{"username":"alice"}`, http.StatusBadRequest, messageMissingCredentials},
		{"missing username", `{"password":"x"}`, http.StatusBadRequest, messageMissingCredentials},
		{"empty strings", `{"username":"","password":""}`, http.StatusBadRequest, messageMissingCredentials},
		{"empty body", ``, http.StatusBadRequest, messageMissingCredentials},
		{"malformed", `{"username":`, http.StatusBadRequest, messageInvalidBody},
		{"wrong type", `{"username":42,"password":"x"}`, http.StatusBadRequest, messageInvalidBody},
		{"trailing data", `{"username":"a","password":"b"}{}`, http.StatusBadRequest, messageInvalidBody},
		{"too large", `{"username":"alice","password":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge, messageBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuth{outcome: ldapauth.OutcomeAuthenticated}
			s := newTestServer(auth, Options{})

			rec, resp := postLogin(t, s.Handler(), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
			assert.Empty(t, auth.calls, "bad requests never reach the verifier")
		})
	}
}

func TestLogin_InvalidUsernameIsNotReportedAsMissing(t *testing.T) {
	auth := &stubAuth{
		outcome: ldapauth.OutcomeInvalidRequest,
		err:     fmt.Errorf("%w: username too long", ldapauth.ErrInvalidUsername),
	}
	s := newTestServer(auth, Options{})

	rec, resp := postLogin(t, s.Handler(), `{"username":"alice","password":"secret123"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, messageInvalidUsername, resp.Message)

	auth.err = ldapauth.ErrMissingCredentials
	rec, resp = postLogin(t, s.Handler(), `{"username":"alice","password":"secret123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, messageMissingCredentials, resp.Message)
}

func TestLogin_IgnoresClientSuppliedDirectory(t *testing.T) {
	auth := &stubAuth{outcome: ldapauth.OutcomeAuthenticated}
	s := newTestServer(auth, Options{})

	rec, _ := postLogin(t, s.Handler(),
		`{"username":"alice","password":"secret123","ldapUrl":"ldap://evil.example.com","baseDN":"dc=evil","domain":"EVIL"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"alice:secret123"}, auth.calls)
}

func TestLogin_WithVerifier(t *testing.T) {
	dir := testutil.NewExampleDirectory()
	v, err := ldapauth.NewVerifier(&ldapauth.Endpoint{
		Server:       "ldap://directory.test:389",
		BindDN:       testutil.ExampleServiceDN,
		BindPassword: testutil.ExampleServicePassword,
		BaseDN:       testutil.ExampleBaseDN,
	}, ldapauth.WithDialer(dir), ldapauth.WithLogger(quietLogger()))
	require.NoError(t, err)

	s := newTestServer(v, Options{})

	rec, resp := postLogin(t, s.Handler(), `{"username":"user1","password":"password1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	wrongRec, wrong := postLogin(t, s.Handler(), `{"username":"user1","password":"nope"}`)
	unknownRec, unknown := postLogin(t, s.Handler(), `{"username":"bob","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, wrongRec.Code)
	assert.Equal(t, wrongRec.Code, unknownRec.Code)
	assert.Equal(t, wrong, unknown, "unknown user and wrong password must look the same")

	dir.DialErr = errors.New("connection refused")
	downRec, down := postLogin(t, s.Handler(), `{"username":"user1","password":"password1"}`)
	assert.Equal(t, http.StatusInternalServerError, downRec.Code)
	assert.Equal(t, messageUnavailable, down.Message)

	tooLong := strings.Repeat("a", 300)
	for name, username := range map[string]string{"control character": `user\u00001`, "too long": tooLong} {
		rec, resp := postLogin(t, s.Handler(), `{"username":"`+username+`","password":"password1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, messageInvalidUsername, resp.Message, name)
	}

	assert.Equal(t, dir.Opened(), dir.Closed())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&stubAuth{}, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouting_NotFoundAndMethod(t *testing.T) {
	s := newTestServer(&stubAuth{}, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, LoginRoute, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(&stubAuth{}, Options{})

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("unsafe value replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "bad id\nwith newline")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})
}

func TestRecoverJSON(t *testing.T) {
	s := newTestServer(&stubAuth{panicMsg: "boom"}, Options{})

	rec, resp := postLogin(t, s.Handler(), `{"username":"a","password":"b"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, messageInternal, resp.Message)
}

func TestRecoverJSON_LoggedAndCounted(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := newTestServer(&stubAuth{panicMsg: "boom"}, Options{Logger: logger, Recorder: m})

	rec, _ := postLogin(t, s.Handler(), `{"username":"a","password":"b"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, LoginRoute, "500")))
	out := buf.String()
	assert.Contains(t, out, `"msg":"panic_recovered"`)
	assert.Contains(t, out, `"msg":"request_done"`)
	assert.Contains(t, out, `"status":500`)
}

func TestCORS(t *testing.T) {
	s := newTestServer(&stubAuth{}, Options{})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://ui.example.com")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "https://ui.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, LoginRoute, nil)
		req.Header.Set("Origin", "https://ui.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Less(t, rec.Code, 300)
		assert.Equal(t, "https://ui.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestAccessLog_NeverContainsPassword(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := newTestServer(&stubAuth{outcome: ldapauth.OutcomeInvalidCredentials}, Options{Logger: logger})

	postLogin(t, s.Handler(), `{"username":"alice","password":"s3cr3t-pw"}`)
	postLogin(t, s.Handler(), `{"username":"alice"}`)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request_done"`)
	assert.Contains(t, out, `"route":"/api/auth/ldap"`)
	assert.Contains(t, out, `"status":401`)
	assert.Contains(t, out, "login_request_rejected")
	assert.Contains(t, out, "password is a required field")
	assert.NotContains(t, out, "s3cr3t-pw")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := newTestServer(&stubAuth{outcome: ldapauth.OutcomeUserNotFound}, Options{
		Recorder:       m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	postLogin(t, s.Handler(), `{"username":"bob","password":"x"}`)
	postLogin(t, s.Handler(), `{"username":"bob","password":"x"}`)

	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, LoginRoute, "401")))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ldapauth_http_requests_total")
}

func TestMetricsRouteAbsentWhenDisabled(t *testing.T) {
	s := newTestServer(&stubAuth{}, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(&stubAuth{outcome: ldapauth.OutcomeAuthenticated}, Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Post(url+LoginRoute, "application/json", strings.NewReader(`{"username":"a","password":"b"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, s.Shutdown(shutdownCtx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(config.HTTPConfig{Addr: ":0"}, &stubAuth{}, Options{})
	assert.Equal(t, ":0", s.Addr())
	assert.Equal(t, int64(1<<20), s.maxBodyBytes)
	assert.Equal(t, 15*time.Second, s.requestTimeout)
}
