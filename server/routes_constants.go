package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes
	RouteAuthPrefix   = "/auth"
	RouteAuthSignIn   = "/auth/signin"
	RouteAuthCallback = "/auth/callback"
	RouteAuthSignOut  = "/auth/signout"
	RouteAuthError    = "/auth/error"
	RouteAPIAuth      = "/api/auth"
	RouteAPIAuthState = "/api/auth/session"

	// Pages
	RouteDashboard     = "/dashboard"
	RouteSearch        = "/buscar"
	RouteAccountDetail = "/accounts/{id}"
	RouteClientes      = "/clientes"
	RouteProfile       = "/perfil"

	// Backend proxy API
	RouteAPIAccounts         = "/api/accounts"
	RouteAPIAccountSearch    = "/api/accounts/search"
	RouteAPIAccountDetails   = "/api/account/{id}/details"
	RouteAPIClientes         = "/api/clientes"
	RouteAPIDashboardSummary = "/api/dashboard/summary"

	// Diagnostics
	RouteAPIEnvCheck     = "/api/system/env-check"
	RouteAPITestKeycloak = "/api/system/test-keycloak"
	RouteAPICheckEnv     = "/api/system/check-env"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteFavicon   = "/favicon.ico"
)

// Sign-in error codes shown on RouteAuthError.
const (
	AuthErrorConfiguration = "Configuration"
	AuthErrorAccessDenied  = "AccessDenied"
	AuthErrorVerification  = "Verification"
	AuthErrorCallback      = "Callback"
)
