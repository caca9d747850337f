package loginsession_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/server/loginsession"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *loginsession.CookieStore {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	codec, err := sessions.NewCodec(strings.Repeat("k", 40), sessions.WithNowFunc(clock))
	require.NoError(t, err)
	return loginsession.NewCookieStore(codec, loginsession.WithNowFunc(clock))
}

func testRecord(name string) sessions.Record {
	return sessions.Record{
		Principal:            sessions.Principal{ID: "user-1", Name: name},
		AccessToken:          "at-1",
		AccessTokenExpiresAt: fixedNow.Add(5 * time.Minute),
		RefreshToken:         "rt-1",
		IssuedAt:             fixedNow,
		ExpiresAt:            fixedNow.Add(24 * time.Hour),
	}
}

// replay builds a request carrying the live cookies set on w.
func replay(w *httptest.ResponseRecorder, existing ...*http.Cookie) *http.Request {
	live := map[string]*http.Cookie{}
	for _, c := range existing {
		live[c.Name] = c
	}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(live, c.Name)
			continue
		}
		live[c.Name] = c
	}
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range live {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

func cookieNames(w *httptest.ResponseRecorder) map[string]int {
	names := map[string]int{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = c.MaxAge
	}
	return names
}

func TestCookieStore_SaveLoad(t *testing.T) {
	store := newStore(t)

	w := httptest.NewRecorder()
	require.NoError(t, store.Save(w, httptest.NewRequest(http.MethodGet, "/", nil), testRecord("Ada")))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, loginsession.CookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	require.Equal(t, int((24 * time.Hour).Seconds()), cookies[0].MaxAge)
	require.False(t, cookies[0].Secure)

	rec, err := store.Load(replay(w))
	require.NoError(t, err)
	require.Equal(t, "Ada", rec.Principal.Name)
	require.Equal(t, "rt-1", rec.RefreshToken)
}

func TestCookieStore_Chunking(t *testing.T) {
	store := newStore(t)
	big := testRecord(strings.Repeat("x", 3*loginsession.ChunkSize))

	w := httptest.NewRecorder()
	require.NoError(t, store.Save(w, httptest.NewRequest(http.MethodGet, "/", nil), big))

	names := cookieNames(w)
	require.NotContains(t, names, loginsession.CookieName)
	require.Contains(t, names, loginsession.CookieName+".0")
	require.Contains(t, names, loginsession.CookieName+".1")
	for _, c := range w.Result().Cookies() {
		require.LessOrEqual(t, len(c.Value), loginsession.ChunkSize)
	}

	chunkedReq := replay(w)
	rec, err := store.Load(chunkedReq)
	require.NoError(t, err)
	require.Equal(t, big.Principal.Name, rec.Principal.Name)

	// Shrinking back to one cookie expires every stale chunk.
	w2 := httptest.NewRecorder()
	require.NoError(t, store.Save(w2, chunkedReq, testRecord("Ada")))
	after := cookieNames(w2)
	require.Positive(t, after[loginsession.CookieName])
	for name, maxAge := range after {
		if name != loginsession.CookieName {
			require.Equal(t, -1, maxAge, name)
		}
	}

	rec, err = store.Load(replay(w2, chunkedReq.Cookies()...))
	require.NoError(t, err)
	require.Equal(t, "Ada", rec.Principal.Name)
}

func TestCookieStore_LoadErrors(t *testing.T) {
	store := newStore(t)

	_, err := store.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: loginsession.CookieName, Value: "forged"})
	_, err = store.Load(r)
	require.ErrorIs(t, err, errors.ErrInvalidSession)
}

func TestCookieStore_Clear(t *testing.T) {
	store := newStore(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: loginsession.CookieName + ".0", Value: "a"})
	r.AddCookie(&http.Cookie{Name: loginsession.CookieName + ".1", Value: "b"})

	w := httptest.NewRecorder()
	store.Clear(w, r)
	require.Equal(t, map[string]int{
		loginsession.CookieName + ".0": -1,
		loginsession.CookieName + ".1": -1,
	}, cookieNames(w))
}

func TestCookieStore_SecureBehindProxy(t *testing.T) {
	store := newStore(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")

	w := httptest.NewRecorder()
	require.NoError(t, store.Save(w, r, testRecord("Ada")))
	require.True(t, w.Result().Cookies()[0].Secure)
}

func TestCookieStore_ExpiredSessionIsCleared(t *testing.T) {
	store := newStore(t)
	rec := testRecord("Ada")
	rec.ExpiresAt = fixedNow.Add(-time.Minute)

	w := httptest.NewRecorder()
	require.NoError(t, store.Save(w, httptest.NewRequest(http.MethodGet, "/", nil), rec))
	require.Equal(t, map[string]int{loginsession.CookieName: -1}, cookieNames(w))
}
