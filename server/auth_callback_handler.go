package server

import (
	"context"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// idTokenClaims are the profile claims copied onto the session principal.
type idTokenClaims struct {
	Subject           string `json:"sub"`
	Nonce             string `json:"nonce"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	PreferredUsername string `json:"preferred_username"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	Organization      string `json:"org_name"`
	Phone             string `json:"telephone"`
}

func (c idTokenClaims) principal() sessions.Principal {
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return sessions.Principal{
		ID:                c.Subject,
		Name:              name,
		Email:             c.Email,
		EmailVerified:     c.EmailVerified,
		PreferredUsername: c.PreferredUsername,
		GivenName:         c.GivenName,
		FamilyName:        c.FamilyName,
		Organization:      c.Organization,
		Phone:             c.Phone,
	}
}

// AuthCallbackHandler completes the authorization code flow: it checks the
// state against the pending flow, exchanges the code with the PKCE verifier,
// verifies the ID token and its nonce, then issues the session cookie.
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The flow is single use, whatever the outcome below.
		flow, flowErr := s.authFlows.Take(w, r)

		if providerErr := r.FormValue("error"); providerErr != "" {
			log.Warn().
				Str("event", "signin_rejected").
				Str("error", providerErr).
				Str("error_description", r.FormValue("error_description")).
				Msg("Provider returned an authorization error")
			code := AuthErrorCallback
			if providerErr == "access_denied" {
				code = AuthErrorAccessDenied
			}
			redirectWithError(w, r, RouteAuthError, code)
			return
		}

		if flowErr != nil || flow == nil || flow.State == "" || r.FormValue("state") != flow.State {
			log.Warn().Err(flowErr).Str("event", "signin_state_mismatch").Msg("Callback state does not match a pending sign-in")
			redirectWithError(w, r, RouteAuthError, AuthErrorVerification)
			return
		}

		code := r.FormValue("code")
		if code == "" {
			redirectWithError(w, r, RouteAuthError, AuthErrorCallback)
			return
		}

		provider, err := s.provider.get(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("OIDC provider unavailable during callback")
			redirectWithError(w, r, RouteAuthError, AuthErrorConfiguration)
			return
		}

		ctx := s.provider.httpContext(r.Context())
		oauth2Token, err := s.provider.oauth2Config(provider, s.callbackURL(r)).Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
		if err != nil {
			log.Error().Err(err).Str("event", "signin_exchange_failed").Msg("Token exchange failed")
			redirectWithError(w, r, RouteAuthError, AuthErrorCallback)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			log.Error().Err(errors.ErrMissingIDToken).Msg("Token response without id_token")
			redirectWithError(w, r, RouteAuthError, AuthErrorCallback)
			return
		}

		claims, err := s.verifyIDToken(ctx, provider, rawIDToken, flow.Nonce)
		if err != nil {
			log.Warn().Err(err).Str("event", "signin_verification_failed").Msg("ID token rejected")
			redirectWithError(w, r, RouteAuthError, AuthErrorVerification)
			return
		}

		rec := s.sessions.Login(claims.principal(), oauth2Token)
		if err := s.loginSessions.Save(w, r, rec); err != nil {
			log.Error().Err(err).Msg("Failed to store new session")
			redirectWithError(w, r, RouteAuthError, AuthErrorConfiguration)
			return
		}

		log.Info().Str("event", "signin").Str("sub", rec.Principal.ID).Msg("User signed in")
		returnURL := flow.ReturnURL
		if returnURL == "" {
			returnURL = RouteDashboard
		}
		redirectSuccess(w, r, returnURL)
	}
}

func (s *Server) verifyIDToken(ctx context.Context, provider *oidc.Provider, rawIDToken, nonce string) (*idTokenClaims, error) {
	idToken, err := s.provider.verifier(provider).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[Server verifyIDToken] verify")
	}
	claims := &idTokenClaims{}
	if err := idToken.Claims(claims); err != nil {
		return nil, errors.Wrapf(err, "[Server verifyIDToken] claims")
	}
	if nonce == "" || claims.Nonce != nonce {
		return nil, errors.ErrInvalidNonce
	}
	claims.Subject = idToken.Subject
	return claims, nil
}
