package config

import (
	"strings"
	"time"
)

type OIDCConfig interface {
	GetIssuer() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
	GetProviderTimeout() time.Duration
	GetTokenEndpoint() string
	GetLogoutEndpoint() string
}

type OIDC struct {
	Issuer          string   `yaml:"issuer"`
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"client_secret"`
	Scopes          []string `yaml:"scopes"`
	ProviderTimeout Duration `yaml:"timeout"`
}

var _ OIDCConfig = OIDC{}

func (o OIDC) GetIssuer() string {
	return strings.TrimSuffix(o.Issuer, "/")
}

func (o OIDC) GetClientID() string {
	return o.ClientID
}

func (o OIDC) GetClientSecret() string {
	return o.ClientSecret
}

func (o OIDC) GetScopes() []string {
	return o.Scopes
}

func (o OIDC) GetProviderTimeout() time.Duration {
	return time.Duration(o.ProviderTimeout)
}

// GetTokenEndpoint returns the Keycloak-style token endpoint for the issuer,
// or "" when no issuer is configured.
func (o OIDC) GetTokenEndpoint() string {
	if o.GetIssuer() == "" {
		return ""
	}
	return o.GetIssuer() + "/protocol/openid-connect/token"
}

func (o OIDC) GetLogoutEndpoint() string {
	if o.GetIssuer() == "" {
		return ""
	}
	return o.GetIssuer() + "/protocol/openid-connect/logout"
}
