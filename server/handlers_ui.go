package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/account-dashboard/backend"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
)

// notAvailable is shown in place of a value the backend did not provide.
const notAvailable = "No-disp"

// basePage is the model shared by every page through the layout.
type basePage struct {
	AppName string
	Title   string
	User    *sessions.Principal
	Notice  string // Shown above the content when data could not be loaded
}

func (s *Server) basePage(r *http.Request, title string) basePage {
	page := basePage{AppName: s.config.GetAppName(), Title: title}
	if rec, ok := sessionFromContext(r.Context()); ok && sessions.StateOf(rec, s.now()) == sessions.Authenticated {
		user := rec.Principal
		page.User = &user
	}
	return page
}

type DashboardPageData struct {
	basePage
	Summary *backend.DashboardSummary
}

type SearchPageData struct {
	basePage
	Term      string
	Searched  bool
	Results   []backend.Account
	MinLength int
}

type AccountPageData struct {
	basePage
	AccountID string
	Detail    *backend.AccountDetail
}

type ClientesPageData struct {
	basePage
	Clientes []backend.Cliente
}

type ProfilePageData struct {
	basePage
	Expires string
}

// DashboardPageHandler renders the summary page (GET /dashboard)
func (s *Server) DashboardPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := DashboardPageData{basePage: s.basePage(r, "Dashboard")}
		err := s.withSession(w, r, func(ctx context.Context, sess backend.Session) (err error) {
			data.Summary, err = s.backend.DashboardSummary(ctx, sess)
			return err
		})
		if s.pageFailed(w, r, err, &data.basePage) {
			return
		}
		s.renderPage(w, r, http.StatusOK, "dashboard.html", data)
	}
}

// SearchPageHandler renders the account search page (GET /buscar?term=)
func (s *Server) SearchPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := SearchPageData{
			basePage:  s.basePage(r, "Buscar cuentas"),
			Term:      r.URL.Query().Get("term"),
			MinLength: backend.MinSearchTermLength,
		}
		if data.Term != "" {
			data.Searched = true
			err := s.withSession(w, r, func(ctx context.Context, sess backend.Session) (err error) {
				data.Results, err = s.backend.SearchAccounts(ctx, sess, data.Term)
				return err
			})
			if errors.Is(err, errors.ErrSearchTermTooShort) {
				data.Searched = false
				data.Notice = "Enter at least 2 characters to search."
			} else if s.pageFailed(w, r, err, &data.basePage) {
				return
			}
		}
		s.renderPage(w, r, http.StatusOK, "search.html", data)
	}
}

// AccountPageHandler renders one account (GET /accounts/{id})
func (s *Server) AccountPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := AccountPageData{
			basePage:  s.basePage(r, "Cuenta"),
			AccountID: r.PathValue("id"),
		}
		err := s.withSession(w, r, func(ctx context.Context, sess backend.Session) (err error) {
			data.Detail, err = s.backend.AccountDetails(ctx, sess, data.AccountID)
			return err
		})
		if s.pageFailed(w, r, err, &data.basePage) {
			return
		}
		if data.Detail != nil && data.Detail.Account != nil && data.Detail.Account.Name != "" {
			data.Title = data.Detail.Account.Name
		}
		s.renderPage(w, r, http.StatusOK, "account.html", data)
	}
}

// ClientesPageHandler renders the customer list (GET /clientes)
func (s *Server) ClientesPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := ClientesPageData{basePage: s.basePage(r, "Clientes")}
		err := s.withSession(w, r, func(ctx context.Context, sess backend.Session) (err error) {
			data.Clientes, err = s.backend.ListClientes(ctx, sess)
			return err
		})
		if s.pageFailed(w, r, err, &data.basePage) {
			return
		}
		s.renderPage(w, r, http.StatusOK, "clientes.html", data)
	}
}

// ProfilePageHandler renders the signed-in user's profile (GET /perfil)
func (s *Server) ProfilePageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := ProfilePageData{basePage: s.basePage(r, "Perfil")}
		if rec, ok := sessionFromContext(r.Context()); ok {
			data.Expires = rec.ExpiresAt.Format("2006-01-02 15:04 MST")
		}
		s.renderPage(w, r, http.StatusOK, "perfil.html", data)
	}
}

// pageFailed reports whether err has already been answered. Failures that
// leave the session usable become a notice on the page instead.
func (s *Server) pageFailed(w http.ResponseWriter, r *http.Request, err error, page *basePage) bool {
	if err == nil {
		return false
	}
	if r.Context().Err() != nil {
		return true
	}

	var refreshErr *errors.RefreshError
	var authErr *errors.AuthenticationError
	switch {
	case errors.As(err, &refreshErr):
		redirectSuccess(w, r, signInAgainURL(r, sessions.RefreshAccessTokenError))
		return true
	case errors.As(err, &authErr):
		redirectSuccess(w, r, signInAgainURL(r, ""))
		return true
	}

	status, body := statusFor(err)
	writeErrorLog(r, err, status)
	page.Notice = body.Error
	return false
}

// signInAgainURL sends the user to the landing page, returning here afterwards.
func signInAgainURL(r *http.Request, errorCode string) string {
	q := url.Values{}
	if errorCode != "" {
		q.Set("error", errorCode)
	}
	q.Set("callbackUrl", requestURL(r))
	return RouteIndex + "?" + q.Encode()
}
