package loginsession

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
)

const (
	// CookieName is the session cookie. Large values are split across
	// CookieName.0, CookieName.1, ...
	CookieName = "dashboard.session-token"

	// ChunkSize keeps each cookie below the common 4KB browser limit.
	ChunkSize = 3800

	maxChunks = 16
)

// CookieStore keeps the sealed session record in the browser.
type CookieStore struct {
	codec *sessions.Codec
	name  string
	now   func() time.Time
}

var _ Repo = (*CookieStore)(nil)

type Option func(*CookieStore)

// WithNowFunc sets the clock used for cookie Max-Age (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *CookieStore) {
		s.now = now
	}
}

func NewCookieStore(codec *sessions.Codec, options ...Option) *CookieStore {
	s := &CookieStore{
		codec: codec,
		name:  CookieName,
		now:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *CookieStore) Load(r *http.Request) (*sessions.Record, error) {
	value := s.read(r)
	if value == "" {
		return nil, errors.ErrSessionNotFound
	}
	rec, err := s.codec.OpenRecord(value)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *CookieStore) Save(w http.ResponseWriter, r *http.Request, rec sessions.Record) error {
	maxAge := int(rec.ExpiresAt.Sub(s.now()).Seconds())
	if maxAge <= 0 {
		s.Clear(w, r)
		return nil
	}

	sealed, err := s.codec.SealRecord(rec)
	if err != nil {
		return fmt.Errorf("[loginsession Save] %w", err)
	}

	present := s.present(r)
	written := map[string]bool{}
	if len(sealed) <= ChunkSize {
		s.set(w, r, s.name, sealed, maxAge)
		written[s.name] = true
	} else {
		for i := 0; len(sealed) > 0; i++ {
			n := min(ChunkSize, len(sealed))
			name := s.chunkName(i)
			s.set(w, r, name, sealed[:n], maxAge)
			written[name] = true
			sealed = sealed[n:]
		}
	}

	for _, name := range present {
		if !written[name] {
			s.set(w, r, name, "", -1)
		}
	}
	return nil
}

func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request) {
	present := s.present(r)
	if len(present) == 0 {
		present = []string{s.name}
	}
	for _, name := range present {
		s.set(w, r, name, "", -1)
	}
}

// read reassembles the sealed value from the whole cookie or its chunks.
func (s *CookieStore) read(r *http.Request) string {
	if c, err := r.Cookie(s.name); err == nil && c.Value != "" {
		return c.Value
	}
	var sb strings.Builder
	for i := 0; i < maxChunks; i++ {
		c, err := r.Cookie(s.chunkName(i))
		if err != nil {
			break
		}
		sb.WriteString(c.Value)
	}
	return sb.String()
}

// present lists the session cookie names the request carries.
func (s *CookieStore) present(r *http.Request) []string {
	var names []string
	for _, c := range r.Cookies() {
		if c.Name == s.name || strings.HasPrefix(c.Name, s.name+".") {
			names = append(names, c.Name)
		}
	}
	return names
}

func (s *CookieStore) chunkName(i int) string {
	return fmt.Sprintf("%s.%d", s.name, i)
}

func (s *CookieStore) set(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// IsSecureRequest reports whether the browser reached us over https,
// directly or through a proxy.
func IsSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
