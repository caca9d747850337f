package server

import (
	"net/http"
	"net/url"
	"strings"
)

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	redirectSuccess(w, r, path+"?error="+url.QueryEscape(errorMsg))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeReturnURL keeps post-login redirects on this site. Relative paths
// are accepted as is; absolute URLs only when they point at the dashboard's
// own origin (BASE_URL, or the request host when unset).
func (s *Server) sanitizeReturnURL(r *http.Request, raw string) string {
	if raw == "" {
		return RouteDashboard
	}
	u, err := url.Parse(raw)
	if err != nil {
		return RouteDashboard
	}

	if u.Scheme != "" || u.Host != "" {
		if !strings.EqualFold(u.Scheme+"://"+u.Host, s.origin(r)) {
			return RouteDashboard
		}
	} else if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return RouteDashboard
	}

	path := u.EscapedPath()
	if path == "" || path == RouteIndex {
		return RouteDashboard
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// origin is scheme://host of the dashboard as the browser sees it.
func (s *Server) origin(r *http.Request) string {
	if base, err := url.Parse(s.config.GetBaseURL()); err == nil && base.Host != "" {
		return base.Scheme + "://" + base.Host
	}
	return getScheme(r) + "://" + r.Host
}

// callbackURL is the redirect_uri registered with the provider.
func (s *Server) callbackURL(r *http.Request) string {
	if base := s.config.GetBaseURL(); base != "" {
		return base + RouteAuthCallback
	}
	return getScheme(r) + "://" + r.Host + RouteAuthCallback
}
