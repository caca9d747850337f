package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/account-dashboard/internal/config"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"golang.org/x/oauth2"
)

// Result is a renewed token set from the identity provider.
type Result struct {
	AccessToken          string
	AccessTokenExpiresAt time.Time // Zero when the provider did not report expires_in
	RefreshToken         string    // The rotated token, or the presented one if the provider did not rotate
}

// Refresher exchanges refresh tokens at the provider's token endpoint.
type Refresher struct {
	cfg    config.OIDCConfig
	client *http.Client
	now    func() time.Time
}

type Option func(*Refresher)

// WithHTTPClient sets the client used to reach the provider.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Refresher) {
		r.client = client
	}
}

// WithNowFunc sets the clock used to compute token expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(r *Refresher) {
		r.now = now
	}
}

func NewRefresher(cfg config.OIDCConfig, options ...Option) *Refresher {
	r := &Refresher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.GetProviderTimeout()},
		now:    time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Refresh performs a refresh_token grant. No network call is made when the
// provider settings are incomplete.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (Result, error) {
	if refreshToken == "" {
		return Result{}, errors.ErrNoRefreshToken
	}
	if err := r.checkConfig(); err != nil {
		return Result{}, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	tok, err := r.oauth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return Result{}, classify("POST token", err)
	}

	result := Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	result.AccessTokenExpiresAt = ExpiresAt(tok, r.now())
	return result, nil
}

// ExpiresAt is now + expires_in for a token endpoint response. It falls back
// to tok.Expiry, and is zero (already expired) when neither is known.
func ExpiresAt(tok *oauth2.Token, now time.Time) time.Time {
	if secs, ok := expiresIn(tok.Extra("expires_in")); ok {
		return now.Add(time.Duration(secs) * time.Second)
	}
	return tok.Expiry
}

// Logout ends the provider-side session bound to refreshToken.
func (r *Refresher) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := r.checkConfig(); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("client_id", r.cfg.GetClientID())
	form.Set("client_secret", r.cfg.GetClientSecret())
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.GetLogoutEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("[refresh Logout] %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return classify("POST logout", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.ProviderError{Status: resp.StatusCode, Description: "logout rejected"}
	}
	return nil
}

func (r *Refresher) checkConfig() error {
	var missing []string
	if r.cfg.GetIssuer() == "" {
		missing = append(missing, "OIDC_ISSUER")
	}
	if r.cfg.GetClientID() == "" {
		missing = append(missing, "OIDC_CLIENT_ID")
	}
	if r.cfg.GetClientSecret() == "" {
		missing = append(missing, "OIDC_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return &errors.ConfigurationError{Missing: missing}
	}
	return nil
}

func (r *Refresher) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     r.cfg.GetClientID(),
		ClientSecret: r.cfg.GetClientSecret(),
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.cfg.GetTokenEndpoint(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// classify maps an oauth2/http failure onto the dashboard error kinds.
func classify(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &errors.ProviderError{
			Status:      status,
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.NewTransportError(op, err)
	}

	// e.g. a 2xx response without an access_token
	return &errors.ProviderError{Status: http.StatusOK, Code: "invalid_response", Description: err.Error()}
}

func expiresIn(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
