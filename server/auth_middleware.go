package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores the resolved *sessions.Record
	ContextKeySession ContextKey = "session"
)

// Decision is the guard's verdict for one request.
type Decision struct {
	Allow      bool
	RedirectTo string // Set when Allow is false
}

// IsPublicPath reports whether path is reachable without a session: the
// landing page, the auth subtrees, the two diagnostics and static assets.
func IsPublicPath(path string) bool {
	switch path {
	case RouteIndex, RouteAPIEnvCheck, RouteAPITestKeycloak, RouteFavicon:
		return true
	}
	return hasSegmentPrefix(path, RouteAuthPrefix) ||
		hasSegmentPrefix(path, RouteAPIAuth) ||
		strings.HasPrefix(path, "/css/")
}

func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Evaluate decides whether r may proceed given the caller's session state.
// It performs no I/O.
func Evaluate(r *http.Request, state sessions.State) Decision {
	if IsPublicPath(r.URL.Path) || state == sessions.Authenticated {
		return Decision{Allow: true}
	}

	errorCode := ""
	if state == sessions.AuthenticatedWithError {
		errorCode = sessions.RefreshAccessTokenError
	}
	return Decision{RedirectTo: signInAgainURL(r, errorCode)}
}

// requestURL is the absolute URL the browser asked for.
func requestURL(r *http.Request) string {
	return getScheme(r) + "://" + r.Host + r.URL.RequestURI()
}

// SessionGuard loads (and for protected paths, resolves) the session, writes
// back any change, stores it in the request context and applies Evaluate.
// An unexpected failure while doing so is a guard fault, handled according to
// the configured fail-open policy.
func (s *Server) SessionGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		public := IsPublicPath(r.URL.Path)

		rec, err := s.resolveSession(w, r, !public)
		if err != nil {
			failOpen := s.config.GetGuardFailOpen()
			log.Error().
				Err(err).
				Str("event", "guard_fault").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("path", r.URL.Path).
				Bool("fail_open", failOpen).
				Msg("Session guard could not resolve the session")
			if failOpen || public {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, r, &errors.TransportError{Op: "session", Err: err})
			return
		}
		if r.Context().Err() != nil {
			return // Client went away during a refresh
		}

		decision := Evaluate(r, sessions.StateOf(rec, s.now()))
		if !decision.Allow {
			redirectSuccess(w, r, decision.RedirectTo)
			return
		}
		if rec != nil {
			r = r.WithContext(context.WithValue(r.Context(), ContextKeySession, rec))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveSession returns the caller's session or nil when there is none.
// Undecodable or expired cookies are cleared and count as no session.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request, refresh bool) (rec *sessions.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			rec, err = nil, fmt.Errorf("%w: panic resolving session: %v", errors.ErrInternal, p)
		}
	}()

	loaded, err := s.loginSessions.Load(r)
	switch {
	case errors.Is(err, errors.ErrSessionNotFound):
		return nil, nil
	case errors.Is(err, errors.ErrInvalidSession):
		log.Debug().Err(err).Msg("Discarding unreadable session cookie")
		s.loginSessions.Clear(w, r)
		return nil, nil
	case err != nil:
		return nil, err
	}
	if !refresh {
		return loaded, nil
	}

	updated, changed := s.sessions.Resolve(r.Context(), *loaded)
	if changed && r.Context().Err() == nil {
		if err := s.loginSessions.Save(w, r, updated); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

// sessionFromContext returns the record placed by SessionGuard.
func sessionFromContext(ctx context.Context) (*sessions.Record, bool) {
	rec, ok := ctx.Value(ContextKeySession).(*sessions.Record)
	return rec, ok && rec != nil
}
