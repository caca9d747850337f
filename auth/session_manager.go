package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/jrsteele09/account-dashboard/token/refresh"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenRefresher exchanges a refresh token for a new token set.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (refresh.Result, error)
}

// SessionManager owns every mutation of a session record: login, reuse,
// refresh and the terminal error marker.
type SessionManager struct {
	refresher TokenRefresher
	maxAge    time.Duration
	now       func() time.Time
}

type Option func(*SessionManager)

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(m *SessionManager) {
		m.now = now
	}
}

func NewSessionManager(refresher TokenRefresher, maxAge time.Duration, options ...Option) *SessionManager {
	m := &SessionManager{
		refresher: refresher,
		maxAge:    maxAge,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Login builds a fresh record from a completed code exchange.
func (m *SessionManager) Login(principal sessions.Principal, tok *oauth2.Token) sessions.Record {
	now := m.now()
	return sessions.Record{
		Principal:            principal,
		AccessToken:          tok.AccessToken,
		AccessTokenExpiresAt: refresh.ExpiresAt(tok, now),
		RefreshToken:         tok.RefreshToken,
		IssuedAt:             now,
		ExpiresAt:            now.Add(m.maxAge),
	}
}

// Resolve returns a record usable for one request cycle and reports whether
// it differs from rec. It never returns an error: every failure is recorded
// in the record's Error field.
func (m *SessionManager) Resolve(ctx context.Context, rec sessions.Record) (sessions.Record, bool) {
	if rec.Error != "" {
		return rec, false
	}
	if m.now().Before(rec.AccessTokenExpiresAt) {
		return rec, false
	}
	if rec.RefreshToken == "" {
		log.Warn().Str("event", "refresh_failed").Str("sub", rec.Principal.ID).Msg("No refresh token available")
		rec.Error = sessions.RefreshAccessTokenError
		return rec, true
	}

	updated, err := m.Refresh(ctx, rec)
	if errors.IsCanceled(err) {
		// The caller is gone; nothing from this cycle may be kept.
		return rec, false
	}
	return updated, true
}

// Refresh unconditionally renews the access token. On failure the returned
// record keeps its stale tokens, carries the error marker, and the error is
// a *errors.RefreshError.
func (m *SessionManager) Refresh(ctx context.Context, rec sessions.Record) (sessions.Record, error) {
	result, err := m.refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if errors.IsCanceled(err) {
			return rec, &errors.RefreshError{Cause: err}
		}
		logRefreshFailure(rec, err)
		rec.Error = sessions.RefreshAccessTokenError
		return rec, &errors.RefreshError{Cause: err}
	}

	rec.AccessToken = result.AccessToken
	rec.AccessTokenExpiresAt = result.AccessTokenExpiresAt
	rec.RefreshToken = result.RefreshToken
	rec.Error = ""
	return rec, nil
}

func logRefreshFailure(rec sessions.Record, err error) {
	event := log.Warn().Str("event", "refresh_failed").Str("sub", rec.Principal.ID).Err(err)

	var cfgErr *errors.ConfigurationError
	var transportErr *errors.TransportError
	var providerErr *errors.ProviderError
	switch {
	case errors.As(err, &cfgErr):
		event.Str("kind", "configuration")
	case errors.As(err, &transportErr):
		event.Str("kind", "transport").Bool("timeout", transportErr.Timeout)
	case errors.As(err, &providerErr):
		event.Str("kind", "provider").Int("status", providerErr.Status).Str("code", providerErr.Code)
	case errors.Is(err, errors.ErrNoRefreshToken):
		event.Str("kind", "no_refresh_token")
	}
	event.Msg("Error refreshing access token")
}
