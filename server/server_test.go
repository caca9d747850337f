package server_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/jrsteele09/account-dashboard/internal/config"
	"github.com/jrsteele09/account-dashboard/server"
	"github.com/jrsteele09/account-dashboard/server/loginsession"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testClientID = "dashboard"
	testBaseURL  = "http://dashboard.test"
	testKeyID    = "test-key"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// fakeIdP is a Keycloak-shaped identity provider: discovery, JWKS, token and
// logout endpoints.
type fakeIdP struct {
	srv *httptest.Server
	key *rsa.PrivateKey

	mu            sync.Mutex
	nonce         string
	challenge     string
	rejectRefresh bool
	refreshCalls  int
	logoutCalls   int
	lastLogoutRT  string
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIdP{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", idp.discovery)
	mux.HandleFunc("GET /protocol/openid-connect/certs", idp.jwks)
	mux.HandleFunc("POST /protocol/openid-connect/token", idp.token)
	mux.HandleFunc("POST /protocol/openid-connect/logout", idp.logout)
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (f *fakeIdP) issuer() string { return f.srv.URL }

// expect records the nonce and PKCE challenge of the sign-in in progress.
func (f *fakeIdP) expect(nonce, challenge string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce, f.challenge = nonce, challenge
}

func (f *fakeIdP) setRejectRefresh(reject bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectRefresh = reject
}

func (f *fakeIdP) counts() (refreshes, logouts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls, f.logoutCalls
}

func (f *fakeIdP) discovery(w http.ResponseWriter, _ *http.Request) {
	base := f.issuer() + "/protocol/openid-connect"
	writeTestJSON(w, http.StatusOK, map[string]any{
		"issuer":                                f.issuer(),
		"authorization_endpoint":                base + "/auth",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/certs",
		"end_session_endpoint":                  base + "/logout",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (f *fakeIdP) jwks(w http.ResponseWriter, _ *http.Request) {
	writeTestJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &f.key.PublicKey,
		KeyID:     testKeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}})
}

func (f *fakeIdP) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if r.PostForm.Get("code") != "good-code" || base64.RawURLEncoding.EncodeToString(sum[:]) != f.challenge {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		idToken, err := f.signIDToken(map[string]any{
			"iss":                f.issuer(),
			"aud":                testClientID,
			"sub":                "user-1",
			"nonce":              f.nonce,
			"iat":                testNow.Unix(),
			"exp":                testNow.Add(time.Hour).Unix(),
			"preferred_username": "ada",
			"email":              "ada@example.com",
			"email_verified":     true,
		})
		if err != nil {
			writeTestJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{
			"access_token":  "at-login",
			"token_type":    "Bearer",
			"expires_in":    300,
			"refresh_token": "rt-login",
			"id_token":      idToken,
		})
	case "refresh_token":
		f.refreshCalls++
		if f.rejectRefresh {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Token is not active"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{
			"access_token":  "at-refreshed",
			"token_type":    "Bearer",
			"expires_in":    300,
			"refresh_token": "rt-refreshed",
		})
	default:
		writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *fakeIdP) logout(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.logoutCalls++
	f.lastLogoutRT = r.PostForm.Get("refresh_token")
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeIdP) signIDToken(claims map[string]any) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: f.key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", testKeyID),
	)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}
	return jws.CompactSerialize()
}

// fakeBackend accepts exactly one bearer token and records every token it sees.
type fakeBackend struct {
	srv *httptest.Server

	mu     sync.Mutex
	accept string
	seen   []string
}

func newFakeBackend(t *testing.T, accept string) *fakeBackend {
	t.Helper()
	b := &fakeBackend{accept: accept}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dashboard/summary", b.authorized(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{
			"metrics":     []map[string]string{{"title": "Ventas", "value": "1.234 €", "change": "+5%"}},
			"recentSales": []map[string]string{{"client": "Acme", "date": "2026-02-28", "amount": "99 €"}},
			"automations": []map[string]string{},
		})
	}))
	mux.HandleFunc("POST /accounts/search", b.authorized(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Term string `json:"term"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeTestJSON(w, http.StatusOK, map[string]any{
			"results": []map[string]string{{"id": "1", "name": "Acme " + body.Term}},
			"total":   1,
		})
	}))
	mux.HandleFunc("GET /clientes", b.authorized(func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []map[string]any{{"id": 7, "nombre": "Ferretería López", "tipo": "empresa"}})
	}))
	mux.HandleFunc("GET /account/{id}/details", b.authorized(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{
			"account":  map[string]string{"Name": "Acme", "Code": "AC-1"},
			"contacts": []any{},
		})
	}))
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		b.seen = append(b.seen, token)
		ok := token == b.accept
		b.mu.Unlock()
		if !ok {
			writeTestJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) tokensSeen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seen...)
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setTestEnv configures the dashboard against the fakes; callers may
// override individual variables afterwards.
func setTestEnv(t *testing.T, issuer, backendURL string) {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("OIDC_ISSUER", issuer)
	t.Setenv("OIDC_CLIENT_ID", testClientID)
	t.Setenv("OIDC_CLIENT_SECRET", "client-secret")
	t.Setenv("OIDC_SCOPES", "")
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("SESSION_MAX_AGE", "")
	t.Setenv("BASE_URL", testBaseURL)
	t.Setenv("BACKEND_URL", backendURL)
	t.Setenv("GUARD_FAIL_OPEN", "")
}

func newTestServer(t *testing.T, options ...server.Option) *server.Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	s, err := server.New(cfg, append([]server.Option{server.WithNowFunc(testClock)}, options...)...)
	require.NoError(t, err)
	return s
}

// harness wires a dashboard to a fake provider and backend.
type harness struct {
	idp     *fakeIdP
	backend *fakeBackend
	server  *server.Server
}

func newHarness(t *testing.T, acceptToken string, options ...server.Option) *harness {
	t.Helper()
	h := &harness{idp: newFakeIdP(t), backend: newFakeBackend(t, acceptToken)}
	setTestEnv(t, h.idp.issuer(), h.backend.srv.URL)
	h.server = newTestServer(t, options...)
	return h
}

func (h *harness) do(method, target string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, testBaseURL+target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, testBaseURL+target, nil)
	}
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, r)
	return w
}

func signedInRecord(accessExpires time.Time) sessions.Record {
	return sessions.Record{
		Principal:            sessions.Principal{ID: "user-1", Name: "Ada Lovelace", Email: "ada@example.com"},
		AccessToken:          "at-1",
		AccessTokenExpiresAt: accessExpires,
		RefreshToken:         "rt-1",
		IssuedAt:             testNow,
		ExpiresAt:            testNow.Add(24 * time.Hour),
	}
}

func testSessionStore(t *testing.T) *loginsession.CookieStore {
	t.Helper()
	codec, err := sessions.NewCodec(testSecret, sessions.WithNowFunc(testClock))
	require.NoError(t, err)
	return loginsession.NewCookieStore(codec, loginsession.WithNowFunc(testClock))
}

// sessionCookies seals rec exactly as the dashboard would.
func sessionCookies(t *testing.T, rec sessions.Record) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, testSessionStore(t).Save(w, httptest.NewRequest(http.MethodGet, testBaseURL+"/", nil), rec))
	return w.Result().Cookies()
}

// liveCookies drops the cookies w expired.
func liveCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var live []*http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			live = append(live, c)
		}
	}
	return live
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// savedSession decodes the session cookie written by w.
func savedSession(t *testing.T, w *httptest.ResponseRecorder) *sessions.Record {
	t.Helper()
	cookies := liveCookies(w)
	require.NotEmpty(t, cookies, "expected a session cookie to be written")
	r := httptest.NewRequest(http.MethodGet, testBaseURL+"/", nil)
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec, err := testSessionStore(t).Load(r)
	require.NoError(t, err)
	return rec
}

func redirectQuery(t *testing.T, w *httptest.ResponseRecorder) (string, url.Values) {
	t.Helper()
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Path, loc.Query()
}
