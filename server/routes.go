package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// AUTH
	s.RegisterRouteFunc("GET "+RouteAuthSignIn, s.SignInHandler())
	s.RegisterRouteFunc("GET "+RouteAuthCallback, s.AuthCallbackHandler())
	s.RegisterRouteFunc("GET "+RouteAuthSignOut, s.SignOutHandler())
	s.RegisterRouteFunc("POST "+RouteAuthSignOut, s.SignOutHandler())
	s.RegisterRouteHandler("GET "+RouteAuthError, ChainMiddleware(s.AuthErrorHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAPIAuthState, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))

	// Pages (the session guard has already run)
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSearch, ChainMiddleware(s.SearchPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAccountDetail, ChainMiddleware(s.AccountPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteClientes, ChainMiddleware(s.ClientesPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteProfile, ChainMiddleware(s.ProfilePageHandler(), s.HTMLMiddleWare()...))

	// Backend proxy API
	s.RegisterRouteHandler("GET "+RouteAPIAccounts, ChainMiddleware(s.AccountsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIAccountSearch, ChainMiddleware(s.AccountSearchHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIAccountSearch, ChainMiddleware(s.AccountSearchHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIAccountDetails, ChainMiddleware(s.AccountDetailsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIClientes, ChainMiddleware(s.ClientesHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIDashboardSummary, ChainMiddleware(s.DashboardSummaryHandler(), s.APIMiddleware()...))

	// Diagnostics
	s.RegisterRouteHandler("GET "+RouteAPIEnvCheck, ChainMiddleware(s.EnvCheckHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPITestKeycloak, ChainMiddleware(s.TestKeycloakHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPICheckEnv, ChainMiddleware(s.CheckEnvHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.CacheMiddleware))
	s.RegisterRouteFunc("GET "+RouteFavicon, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			log.Warn().Err(err).Str("path", filePath).Msg("Static file not found")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
