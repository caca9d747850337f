package server

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// InitialiseSystem runs the startup checks: it logs the effective
// configuration and, when probe is set, performs OIDC discovery once so a
// misconfigured issuer shows up at boot rather than at the first sign-in.
func (s *Server) InitialiseSystem(ctx context.Context, probe bool) error {
	baseURL := s.config.GetBaseURL()

	log.Printf("📋 Dashboard Configuration:")
	log.Printf("   Base URL:       %s", baseURL)
	log.Printf("   Backend URL:    %s", s.config.GetBackendURL())
	log.Printf("   Session MaxAge: %s", s.config.GetSessionMaxAge())
	log.Printf("   Guard:          %s", failPolicy(s.config.GetGuardFailOpen()))
	log.Printf("")
	log.Printf("🔐 Identity Provider:")
	log.Printf("   Issuer:         %s", s.config.GetIssuer())
	log.Printf("   Client ID:      %s", s.config.GetClientID())
	log.Printf("   Scopes:         %s", strings.Join(s.config.GetScopes(), " "))
	log.Printf("   Redirect URI:   %s%s", baseURL, RouteAuthCallback)
	log.Printf("")

	if !probe {
		return nil
	}
	if _, err := s.provider.get(ctx); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] OIDC discovery failed: %w", err)
	}
	log.Printf("🌐 Discovery OK: %s/.well-known/openid-configuration", strings.TrimSuffix(s.config.GetIssuer(), "/"))
	return nil
}

func failPolicy(failOpen bool) string {
	if failOpen {
		return "fail-open"
	}
	return "fail-closed"
}
