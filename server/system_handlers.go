package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

// Diagnostics never reveal configuration values, only whether they are set.

const (
	keycloakConnected     = "Connected"
	keycloakFailed        = "Failed"
	keycloakNotConfigured = "OIDC_ISSUER not configured"

	keycloakProbeTimeout = 5 * time.Second
)

type EnvCheckResponse struct {
	EnvValid            bool `json:"envValid"`
	HasOIDCClientID     bool `json:"hasOidcClientId"`
	HasOIDCClientSecret bool `json:"hasOidcClientSecret"`
	HasOIDCIssuer       bool `json:"hasOidcIssuer"`
	HasSessionSecret    bool `json:"hasSessionSecret"`
	HasBaseURL          bool `json:"hasBaseUrl"`
	HasBackendURL       bool `json:"hasBackendUrl"`
}

// EnvCheckHandler reports which settings are present (GET /api/system/env-check)
func (s *Server) EnvCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, EnvCheckResponse{
			EnvValid:            s.config.Validate() == nil,
			HasOIDCClientID:     isSet(s.config.GetClientID()),
			HasOIDCClientSecret: isSet(s.config.GetClientSecret()),
			HasOIDCIssuer:       isSet(s.config.GetIssuer()),
			HasSessionSecret:    isSet(s.config.GetSessionSecret()),
			HasBaseURL:          isSet(s.config.GetBaseURL()),
			HasBackendURL:       isSet(s.config.GetBackendURL()),
		})
	}
}

type KeycloakStatus struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	IssuerURL string `json:"issuerUrl,omitempty"`
}

type TestKeycloakResponse struct {
	Status           string          `json:"status"`
	Message          string          `json:"message,omitempty"`
	EnvironmentValid bool            `json:"environmentValid"`
	Keycloak         *KeycloakStatus `json:"keycloak,omitempty"`
}

// TestKeycloakHandler probes the identity provider's discovery document
// (GET /api/system/test-keycloak). It always bypasses the discovery cache.
func (s *Server) TestKeycloakHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.config.Validate(); err != nil {
			log.Warn().Err(err).Msg("Keycloak test requested with invalid configuration")
			writeJSON(w, http.StatusInternalServerError, TestKeycloakResponse{
				Status:  "error",
				Message: "Invalid environment configuration",
			})
			return
		}

		issuer := s.config.GetIssuer()
		kc := &KeycloakStatus{Status: keycloakNotConfigured}
		if issuer != "" {
			kc.IssuerURL = issuer
			if err := probeProvider(r.Context(), s.providerHTTP, issuer, keycloakProbeTimeout); err != nil {
				log.Warn().Err(err).Str("issuer", issuer).Msg("Keycloak discovery failed")
				kc.Status = keycloakFailed
				kc.Error = err.Error()
			} else {
				kc.Status = keycloakConnected
			}
		}
		writeJSON(w, http.StatusOK, TestKeycloakResponse{
			Status:           "success",
			EnvironmentValid: true,
			Keycloak:         kc,
		})
	}
}

type CheckEnvResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
}

// CheckEnvHandler is the signed-in variant of the environment check
// (GET /api/system/check-env).
func (s *Server) CheckEnvHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := CheckEnvResponse{Status: "ok", Message: "Environment configuration is valid", Timestamp: s.now().UTC()}
		if rec, ok := sessionFromContext(r.Context()); ok && sessions.StateOf(rec, s.now()) == sessions.Authenticated {
			resp.User = rec.Principal.DisplayName()
		}
		if err := s.config.Validate(); err != nil {
			resp.Status = "error"
			resp.Message = err.Error()
			writeJSON(w, http.StatusInternalServerError, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func isSet(v string) bool {
	return strings.TrimSpace(v) != ""
}
