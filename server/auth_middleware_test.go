package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/server"
	"github.com/jrsteele09/account-dashboard/server/loginsession"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path   string
		public bool
	}{
		{"/", true},
		{"/auth", true},
		{"/auth/signin", true},
		{"/auth/callback", true},
		{"/api/auth/session", true},
		{"/api/system/env-check", true},
		{"/api/system/test-keycloak", true},
		{"/css/dashboard.css", true},
		{"/favicon.ico", true},
		{"/dashboard", false},
		{"/authors", false},
		{"/api/authz", false},
		{"/api/system/check-env", false},
		{"/api/accounts", false},
		{"/perfil", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.public, server.IsPublicPath(tt.path))
		})
	}
}

func TestEvaluate(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://dashboard.test/dashboard?x=1", nil)

	t.Run("unauthenticated on protected path redirects with callbackUrl", func(t *testing.T) {
		d := server.Evaluate(r, sessions.Unauthenticated)
		require.False(t, d.Allow)
		require.Equal(t, "/?callbackUrl=http%3A%2F%2Fdashboard.test%2Fdashboard%3Fx%3D1", d.RedirectTo)
	})

	t.Run("refresh error redirects with error code", func(t *testing.T) {
		d := server.Evaluate(r, sessions.AuthenticatedWithError)
		require.False(t, d.Allow)
		require.Equal(t, "/?callbackUrl=http%3A%2F%2Fdashboard.test%2Fdashboard%3Fx%3D1&error=RefreshAccessTokenError", d.RedirectTo)
	})

	t.Run("authenticated is allowed", func(t *testing.T) {
		require.True(t, server.Evaluate(r, sessions.Authenticated).Allow)
	})

	t.Run("public path is allowed without a session", func(t *testing.T) {
		pub := httptest.NewRequest(http.MethodGet, "http://dashboard.test/auth/signin", nil)
		require.True(t, server.Evaluate(pub, sessions.Unauthenticated).Allow)
	})

	t.Run("forwarded https is kept in callbackUrl", func(t *testing.T) {
		proxied := httptest.NewRequest(http.MethodGet, "http://dashboard.test/clientes", nil)
		proxied.Header.Set("X-Forwarded-Proto", "https")
		d := server.Evaluate(proxied, sessions.Unauthenticated)
		require.Equal(t, "/?callbackUrl=https%3A%2F%2Fdashboard.test%2Fclientes", d.RedirectTo)
	})
}

func TestSessionGuard_AnonymousPageRedirects(t *testing.T) {
	h := newHarness(t, "at-1")

	w := h.do(http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	path, q := redirectQuery(t, w)
	require.Equal(t, "/", path)
	require.Equal(t, testBaseURL+"/dashboard", q.Get("callbackUrl"))
	require.Empty(t, q.Get("error"))
	require.Empty(t, h.backend.tokensSeen())
}

func TestSessionGuard_HTMXRedirect(t *testing.T) {
	h := newHarness(t, "at-1")

	r := httptest.NewRequest(http.MethodGet, testBaseURL+"/clientes", nil)
	r.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, r)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Contains(t, w.Header().Get("HX-Redirect"), "callbackUrl=")
}

func TestSessionGuard_ValidTokenIsNotRefreshed(t *testing.T) {
	h := newHarness(t, "at-1")
	cookies := sessionCookies(t, signedInRecord(testNow.Add(5*time.Minute)))

	w := h.do(http.MethodGet, "/api/dashboard/summary", "", cookies...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	refreshes, _ := h.idp.counts()
	require.Zero(t, refreshes)
	require.Nil(t, cookieNamed(w, loginsession.CookieName), "unchanged session must not be rewritten")
	require.Equal(t, []string{"at-1"}, h.backend.tokensSeen())
}

func TestSessionGuard_RefreshesExpiredToken(t *testing.T) {
	h := newHarness(t, "at-refreshed")
	cookies := sessionCookies(t, signedInRecord(testNow.Add(-time.Minute)))

	w := h.do(http.MethodGet, "/api/dashboard/summary", "", cookies...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	refreshes, _ := h.idp.counts()
	require.Equal(t, 1, refreshes)
	require.Equal(t, []string{"at-refreshed"}, h.backend.tokensSeen())

	rec := savedSession(t, w)
	require.Equal(t, "at-refreshed", rec.AccessToken)
	require.Equal(t, "rt-refreshed", rec.RefreshToken)
	require.Equal(t, testNow.Add(300*time.Second), rec.AccessTokenExpiresAt.UTC())
	require.Empty(t, rec.Error)
	require.Equal(t, "user-1", rec.Principal.ID)
}

func TestSessionGuard_ExpiryBoundaryRefreshes(t *testing.T) {
	h := newHarness(t, "at-refreshed")
	// A token expiring exactly now is no longer valid.
	cookies := sessionCookies(t, signedInRecord(testNow))

	w := h.do(http.MethodGet, "/api/dashboard/summary", "", cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	refreshes, _ := h.idp.counts()
	require.Equal(t, 1, refreshes)
}

func TestSessionGuard_RefreshFailureMarksSession(t *testing.T) {
	h := newHarness(t, "at-refreshed")
	h.idp.setRejectRefresh(true)
	cookies := sessionCookies(t, signedInRecord(testNow.Add(-time.Minute)))

	w := h.do(http.MethodGet, "/dashboard", "", cookies...)
	require.Equal(t, http.StatusSeeOther, w.Code)
	path, q := redirectQuery(t, w)
	require.Equal(t, "/", path)
	require.Equal(t, sessions.RefreshAccessTokenError, q.Get("error"))
	require.Equal(t, testBaseURL+"/dashboard", q.Get("callbackUrl"))

	rec := savedSession(t, w)
	require.Equal(t, sessions.RefreshAccessTokenError, rec.Error)
	require.Equal(t, "at-1", rec.AccessToken, "stale tokens are kept")
	require.Empty(t, h.backend.tokensSeen())

	t.Run("marked session is not refreshed again", func(t *testing.T) {
		h.idp.setRejectRefresh(false)
		w2 := h.do(http.MethodGet, "/dashboard", "", liveCookies(w)...)
		require.Equal(t, http.StatusSeeOther, w2.Code)
		refreshes, _ := h.idp.counts()
		require.Equal(t, 1, refreshes)
	})
}

func TestSessionGuard_UnreadableCookieIsCleared(t *testing.T) {
	h := newHarness(t, "at-1")

	w := h.do(http.MethodGet, "/api/auth/session", "", &http.Cookie{Name: loginsession.CookieName, Value: "not-a-jwe"})
	require.Equal(t, http.StatusOK, w.Code)

	var body server.SessionStateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Authenticated)

	cleared := cookieNamed(w, loginsession.CookieName)
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)
}

func TestSessionGuard_ExpiredSessionIsAnonymous(t *testing.T) {
	h := newHarness(t, "at-1")
	rec := signedInRecord(testNow.Add(5 * time.Minute))
	rec.IssuedAt = testNow.Add(-25 * time.Hour)
	rec.ExpiresAt = testNow.Add(time.Second)
	cookies := sessionCookies(t, rec)

	// Same cookie, presented after the session's max age.
	later := testNow.Add(time.Minute)
	s := newTestServer(t, server.WithNowFunc(func() time.Time { return later }))
	r := httptest.NewRequest(http.MethodGet, testBaseURL+"/perfil", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)

	require.Equal(t, http.StatusSeeOther, w.Code)
	_, q := redirectQuery(t, w)
	require.Empty(t, q.Get("error"))
}

// faultyRepo fails to load any session.
type faultyRepo struct{}

func (faultyRepo) Load(*http.Request) (*sessions.Record, error) {
	return nil, errors.New("session store offline")
}

func (faultyRepo) Save(http.ResponseWriter, *http.Request, sessions.Record) error {
	return errors.New("session store offline")
}

func (faultyRepo) Clear(http.ResponseWriter, *http.Request) {}

func TestSessionGuard_FaultPolicy(t *testing.T) {
	t.Run("fail open lets the request through", func(t *testing.T) {
		h := newHarness(t, "at-1", server.WithLoginSessionRepo(faultyRepo{}))

		w := h.do(http.MethodGet, "/api/dashboard/summary", "")
		// The handler runs and finds no session.
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("fail closed answers 503 on protected paths", func(t *testing.T) {
		idp, backend := newFakeIdP(t), newFakeBackend(t, "at-1")
		setTestEnv(t, idp.issuer(), backend.srv.URL)
		t.Setenv("GUARD_FAIL_OPEN", "false")
		s := newTestServer(t, server.WithLoginSessionRepo(faultyRepo{}))

		w := httptest.NewRecorder()
		s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, testBaseURL+"/api/dashboard/summary", nil))
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.JSONEq(t, `{"error":"service unavailable"}`, w.Body.String())

		t.Run("public paths still proceed", func(t *testing.T) {
			w := httptest.NewRecorder()
			s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, testBaseURL+"/", nil))
			require.Equal(t, http.StatusOK, w.Code)
		})
	})
}
