package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/account-dashboard/internal/config"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// oidcProvider discovers the identity provider once, on first use.
// Concurrent first requests share a single discovery round trip; a failed
// discovery is not cached so the next sign-in retries it.
type oidcProvider struct {
	cfg    config.OIDCConfig
	client *http.Client
	now    func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	provider *oidc.Provider
}

func newOIDCProvider(cfg config.OIDCConfig, client *http.Client, now func() time.Time) *oidcProvider {
	return &oidcProvider{cfg: cfg, client: client, now: now}
}

func (p *oidcProvider) get(ctx context.Context) (*oidc.Provider, error) {
	p.mu.RLock()
	provider := p.provider
	p.mu.RUnlock()
	if provider != nil {
		return provider, nil
	}

	if p.cfg.GetIssuer() == "" || p.cfg.GetClientID() == "" || p.cfg.GetClientSecret() == "" {
		return nil, &errors.ConfigurationError{Missing: missingOIDCSettings(p.cfg)}
	}

	v, err, _ := p.group.Do(p.cfg.GetIssuer(), func() (any, error) {
		// Shared by every waiting caller, so one caller leaving must not abort it.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.GetProviderTimeout())
		defer cancel()

		provider, err := oidc.NewProvider(oidc.ClientContext(dctx, p.client), p.cfg.GetIssuer())
		if err != nil {
			return nil, errors.NewTransportError("GET "+p.cfg.GetIssuer()+"/.well-known/openid-configuration", err)
		}
		p.mu.Lock()
		p.provider = provider
		p.mu.Unlock()
		return provider, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*oidc.Provider), nil
}

// oauth2Config builds the authorization-code client for one redirect URI.
func (p *oidcProvider) oauth2Config(provider *oidc.Provider, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.GetClientID(),
		ClientSecret: p.cfg.GetClientSecret(),
		Endpoint:     provider.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       p.cfg.GetScopes(),
	}
}

func (p *oidcProvider) verifier(provider *oidc.Provider) *oidc.IDTokenVerifier {
	return provider.Verifier(&oidc.Config{
		ClientID: p.cfg.GetClientID(),
		Now:      p.now,
	})
}

// httpContext makes oauth2 and go-oidc use the provider client.
func (p *oidcProvider) httpContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, p.client)
}

func missingOIDCSettings(cfg config.OIDCConfig) []string {
	var missing []string
	for _, setting := range []struct{ name, value string }{
		{"OIDC_ISSUER", cfg.GetIssuer()},
		{"OIDC_CLIENT_ID", cfg.GetClientID()},
		{"OIDC_CLIENT_SECRET", cfg.GetClientSecret()},
	} {
		if setting.value == "" {
			missing = append(missing, setting.name)
		}
	}
	return missing
}

// probeProvider performs a one-off discovery with its own timeout, bypassing
// the cache. Used by diagnostics.
func probeProvider(ctx context.Context, client *http.Client, issuer string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuer); err != nil {
		return fmt.Errorf("discovery %s: %w", issuer, err)
	}
	return nil
}
