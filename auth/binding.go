package auth

import (
	"context"

	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
)

// Binding ties one session record to one request. The backend client asks it
// for a bearer token and, after a 401, for a renewed one. It is not safe for
// concurrent use.
type Binding struct {
	manager *SessionManager
	rec     sessions.Record
	dirty   bool
}

func (m *SessionManager) Bind(rec sessions.Record) *Binding {
	return &Binding{manager: m, rec: rec}
}

// AccessToken returns a token that is valid now, refreshing first if needed.
func (b *Binding) AccessToken(ctx context.Context) (string, error) {
	if updated, changed := b.manager.Resolve(ctx, b.rec); changed {
		b.rec = updated
		b.dirty = true
	}
	return b.current(ctx)
}

// Refresh forces a renewal, used after the backend rejected the current token.
func (b *Binding) Refresh(ctx context.Context) (string, error) {
	if b.rec.Error != "" {
		return "", &errors.RefreshError{Cause: errors.New(b.rec.Error)}
	}
	updated, err := b.manager.Refresh(ctx, b.rec)
	if errors.IsCanceled(err) {
		return "", err
	}
	b.rec = updated
	b.dirty = true
	if err != nil {
		return "", err
	}
	return b.current(ctx)
}

func (b *Binding) current(ctx context.Context) (string, error) {
	if b.rec.Error != "" {
		return "", &errors.RefreshError{Cause: errors.New(b.rec.Error)}
	}
	if !b.rec.AccessTokenValid(b.manager.now()) {
		if err := ctx.Err(); err != nil {
			return "", errors.NewTransportError("POST token", err)
		}
		return "", &errors.AuthenticationError{Reason: "access token expired"}
	}
	return b.rec.AccessToken, nil
}

// Record is the session as it stands after any refresh done through b.
func (b *Binding) Record() sessions.Record {
	return b.rec
}

// Dirty reports whether the record changed and must be written back.
func (b *Binding) Dirty() bool {
	return b.dirty
}
