package sessions

import (
	"time"
)

// RefreshAccessTokenError is the terminal marker set on a session whose
// access token could not be renewed.
const RefreshAccessTokenError = "RefreshAccessTokenError"

// Principal is the signed-in user as described by the identity provider.
// It is set at login and only replaced by a new login.
type Principal struct {
	ID                string `json:"id"` // Stable subject ("sub") from the provider
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	Organization      string `json:"org_name,omitempty"`
	Phone             string `json:"telephone,omitempty"`
}

// DisplayName returns the best available human-readable name.
func (p Principal) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.PreferredUsername != "":
		return p.PreferredUsername
	case p.Email != "":
		return p.Email
	}
	return p.ID
}

// Record is the per-principal session state. It is never kept in server
// memory between requests; it travels with the browser as a sealed cookie.
type Record struct {
	Principal Principal `json:"user"`

	// Tokens
	AccessToken          string    `json:"accessToken,omitempty"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpires"` // The token must not be sent at or after this instant
	RefreshToken         string    `json:"refreshToken,omitempty"`

	// Error, once set, forces re-authentication regardless of token validity.
	Error string `json:"error,omitempty"`

	// Session lifetime
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// AccessTokenValid reports whether the access token may still be presented at now.
func (r Record) AccessTokenValid(now time.Time) bool {
	return r.AccessToken != "" && now.Before(r.AccessTokenExpiresAt)
}

// Expired reports whether the session itself has outlived its max age.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// State classifies a session for route gating.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	AuthenticatedWithError
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case AuthenticatedWithError:
		return "authenticated_with_error"
	}
	return "unauthenticated"
}

// StateOf classifies rec. A nil record, an anonymous record and an expired
// session are all Unauthenticated.
func StateOf(rec *Record, now time.Time) State {
	if rec == nil || rec.Principal.ID == "" || rec.Expired(now) {
		return Unauthenticated
	}
	if rec.Error != "" {
		return AuthenticatedWithError
	}
	return Authenticated
}
