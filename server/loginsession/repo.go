package loginsession

import (
	"net/http"

	"github.com/jrsteele09/account-dashboard/sessions"
)

// Repo persists the session record of the browser making the request.
// Load returns errors.ErrSessionNotFound when the request carries no session
// and an error wrapping errors.ErrInvalidSession when it cannot be trusted.
type Repo interface {
	Load(r *http.Request) (*sessions.Record, error)
	Save(w http.ResponseWriter, r *http.Request, rec sessions.Record) error
	Clear(w http.ResponseWriter, r *http.Request)
}
