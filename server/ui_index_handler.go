package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/account-dashboard/sessions"
)

type IndexPageData struct {
	basePage
	SignInURL      string
	SessionExpired bool
}

// IndexHandler renders the landing page. A signed-in user goes straight on
// to callbackUrl (or the dashboard).
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callback := r.URL.Query().Get("callbackUrl")

		rec, _ := sessionFromContext(r.Context())
		if sessions.StateOf(rec, s.now()) == sessions.Authenticated {
			redirectSuccess(w, r, s.sanitizeReturnURL(r, callback))
			return
		}

		signIn := RouteAuthSignIn
		if callback != "" {
			signIn += "?" + url.Values{"callbackUrl": {s.sanitizeReturnURL(r, callback)}}.Encode()
		}
		s.renderPage(w, r, http.StatusOK, "index.html", IndexPageData{
			basePage:       s.basePage(r, "Iniciar sesión"),
			SignInURL:      signIn,
			SessionExpired: r.URL.Query().Get("error") == sessions.RefreshAccessTokenError,
		})
	}
}
