package server

import (
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/account-dashboard/server/authflowrepo"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// SignInHandler starts the authorization code flow (GET /auth/signin).
// callbackUrl, when on this site, is where the user lands afterwards.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := s.provider.get(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("OIDC provider unavailable, cannot start sign-in")
			redirectWithError(w, r, RouteAuthError, AuthErrorConfiguration)
			return
		}

		flow := authflowrepo.AuthFlowState{
			State:        uuid.NewString(),
			Nonce:        uuid.NewString(),
			CodeVerifier: oauth2.GenerateVerifier(),
			ReturnURL:    s.sanitizeReturnURL(r, r.URL.Query().Get("callbackUrl")),
		}
		if err := s.authFlows.Save(w, r, flow); err != nil {
			log.Error().Err(err).Msg("Failed to store pending sign-in")
			redirectWithError(w, r, RouteAuthError, AuthErrorConfiguration)
			return
		}

		authURL := s.provider.oauth2Config(provider, s.callbackURL(r)).AuthCodeURL(
			flow.State,
			oidc.Nonce(flow.Nonce),
			oauth2.S256ChallengeOption(flow.CodeVerifier),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// SignOutHandler ends the session locally and, best effort, at the provider.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := sessionFromContext(r.Context()); ok && rec.RefreshToken != "" {
			if err := s.logout.Logout(r.Context(), rec.RefreshToken); err != nil {
				log.Warn().Err(err).Str("sub", rec.Principal.ID).Msg("Provider logout failed")
			}
		}
		s.loginSessions.Clear(w, r)
		redirectSuccess(w, r, RouteIndex)
	}
}

// AuthErrorPageData contains data for rendering the sign-in error page
type AuthErrorPageData struct {
	basePage
	Code    string
	Message string
}

var authErrorMessages = map[string]string{
	AuthErrorConfiguration:           "There is a problem with the server configuration. Please contact the administrator.",
	AuthErrorAccessDenied:            "You don't have permission to access this application.",
	sessions.RefreshAccessTokenError: "Your session has expired. Please sign in again.",
}

const defaultAuthErrorMessage = "An error occurred during the authentication process. Please try again."

// AuthErrorMessage is the text shown on the error page for code.
func AuthErrorMessage(code string) string {
	if msg, ok := authErrorMessages[code]; ok {
		return msg
	}
	return defaultAuthErrorMessage
}

// AuthErrorHandler displays the sign-in error page (GET /auth/error?error=CODE)
func (s *Server) AuthErrorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("error")
		s.renderPage(w, r, http.StatusOK, "auth_error.html", AuthErrorPageData{
			basePage: s.basePage(r, "Sign-in error"),
			Code:     code,
			Message:  AuthErrorMessage(code),
		})
	}
}

// SessionStateResponse is the client-visible view of a session. Tokens are
// never included.
type SessionStateResponse struct {
	Authenticated bool                `json:"authenticated"`
	User          *sessions.Principal `json:"user,omitempty"`
	Error         string              `json:"error,omitempty"`
	Expires       *time.Time          `json:"expires,omitempty"`
}

// SessionStateHandler reports the current session (GET /api/auth/session)
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := sessionFromContext(r.Context())
		if !ok || sessions.StateOf(rec, s.now()) == sessions.Unauthenticated {
			writeJSON(w, http.StatusOK, SessionStateResponse{})
			return
		}
		expires := rec.ExpiresAt
		writeJSON(w, http.StatusOK, SessionStateResponse{
			Authenticated: rec.Error == "",
			User:          &rec.Principal,
			Error:         rec.Error,
			Expires:       &expires,
		})
	}
}
