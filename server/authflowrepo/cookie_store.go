package authflowrepo

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/server/loginsession"
	"github.com/jrsteele09/account-dashboard/sessions"
)

const (
	CookieName = "dashboard.auth-flow"
	cookiePath = "/auth"

	// FlowLifetime bounds how long the user may take at the provider's login page.
	FlowLifetime = 10 * time.Minute
)

type flowClaims struct {
	jwt.RegisteredClaims
	Flow AuthFlowState `json:"flow"`
}

// CookieStore seals the pending flow into a short-lived cookie scoped to /auth.
type CookieStore struct {
	codec *sessions.Codec
	now   func() time.Time
}

var _ Repo = (*CookieStore)(nil)

func NewCookieStore(codec *sessions.Codec, now func() time.Time) *CookieStore {
	if now == nil {
		now = time.Now
	}
	return &CookieStore{codec: codec, now: now}
}

func (s *CookieStore) Save(w http.ResponseWriter, r *http.Request, flow AuthFlowState) error {
	now := s.now()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}
	sealed, err := s.codec.Seal(flowClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(FlowLifetime)),
		},
		Flow: flow,
	})
	if err != nil {
		return fmt.Errorf("[authflowrepo Save] %w", err)
	}
	s.set(w, r, sealed, int(FlowLifetime.Seconds()))
	return nil
}

// Take returns the pending flow and expires its cookie. A missing, forged or
// stale flow yields errors.ErrInvalidState.
func (s *CookieStore) Take(w http.ResponseWriter, r *http.Request) (*AuthFlowState, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, fmt.Errorf("%w: no authorization flow in progress", errors.ErrInvalidState)
	}
	s.set(w, r, "", -1)

	var claims flowClaims
	if err := s.codec.Open(c.Value, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidState, err)
	}
	return &claims.Flow, nil
}

func (s *CookieStore) set(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     cookiePath,
		HttpOnly: true,
		Secure:   loginsession.IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
