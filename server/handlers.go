package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/account-dashboard/backend"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

// withSession runs call with the request's session as the backend
// credential source. A token renewed during the call is written back to the
// session cookie unless the client has gone away.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, call func(ctx context.Context, sess backend.Session) error) error {
	rec, ok := sessionFromContext(r.Context())
	if !ok {
		return &errors.AuthenticationError{Reason: "no session"}
	}
	switch sessions.StateOf(rec, s.now()) {
	case sessions.Unauthenticated:
		return &errors.AuthenticationError{Reason: "session expired"}
	case sessions.AuthenticatedWithError:
		return &errors.RefreshError{Cause: errors.New(rec.Error)}
	}

	binding := s.sessions.Bind(*rec)
	err := call(r.Context(), binding)
	if binding.Dirty() && r.Context().Err() == nil {
		if saveErr := s.loginSessions.Save(w, r, binding.Record()); saveErr != nil {
			log.Error().Err(saveErr).Msg("Failed to store refreshed session")
		}
	}
	return err
}

// apiHandler adapts a backend call to a JSON endpoint.
func (s *Server) apiHandler(call func(ctx context.Context, r *http.Request, sess backend.Session) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var result any
		err := s.withSession(w, r, func(ctx context.Context, sess backend.Session) (err error) {
			result, err = call(ctx, r, sess)
			return err
		})
		if r.Context().Err() != nil {
			return // Nobody is listening
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// AccountsHandler lists accounts, or returns one account's details when
// accountId is given (GET /api/accounts[?accountId=])
func (s *Server) AccountsHandler() http.HandlerFunc {
	return s.apiHandler(func(ctx context.Context, r *http.Request, sess backend.Session) (any, error) {
		if id := r.URL.Query().Get("accountId"); id != "" {
			return s.backend.AccountDetails(ctx, sess, id)
		}
		return s.backend.ListAccounts(ctx, sess)
	})
}

// AccountSearchHandler searches accounts by term, from the query string on
// GET or a {"term": ...} body on POST.
func (s *Server) AccountSearchHandler() http.HandlerFunc {
	return s.apiHandler(func(ctx context.Context, r *http.Request, sess backend.Session) (any, error) {
		term := r.URL.Query().Get("term")
		if r.Method == http.MethodPost {
			var body struct {
				Term string `json:"term"`
			}
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
				return nil, errors.Wrapf(errors.ErrInvalidRequest, "decode search body: %v", err)
			}
			term = body.Term
		}
		return s.backend.SearchAccounts(ctx, sess, term)
	})
}

// AccountDetailsHandler returns one account (GET /api/account/{id}/details)
func (s *Server) AccountDetailsHandler() http.HandlerFunc {
	return s.apiHandler(func(ctx context.Context, r *http.Request, sess backend.Session) (any, error) {
		return s.backend.AccountDetails(ctx, sess, r.PathValue("id"))
	})
}

func (s *Server) ClientesHandler() http.HandlerFunc {
	return s.apiHandler(func(ctx context.Context, r *http.Request, sess backend.Session) (any, error) {
		return s.backend.ListClientes(ctx, sess)
	})
}

func (s *Server) DashboardSummaryHandler() http.HandlerFunc {
	return s.apiHandler(func(ctx context.Context, r *http.Request, sess backend.Session) (any, error) {
		return s.backend.DashboardSummary(ctx, sess)
	})
}
