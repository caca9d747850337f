package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	portEnvVar          = "PORT"
	appNameVar          = "APP_NAME"
	envVar              = "ENV"
	logLevelVar         = "LOG_LEVEL"
	baseURLVar          = "BASE_URL"
	oidcIssuerVar       = "OIDC_ISSUER"
	oidcClientIDVar     = "OIDC_CLIENT_ID"
	oidcClientSecretVar = "OIDC_CLIENT_SECRET"
	oidcScopesVar       = "OIDC_SCOPES"
	providerTimeoutVar  = "PROVIDER_TIMEOUT"
	sessionSecretVar    = "SESSION_SECRET"
	sessionMaxAgeVar    = "SESSION_MAX_AGE"
	backendURLVar       = "BACKEND_URL"
	backendTimeoutVar   = "BACKEND_TIMEOUT"
	guardFailOpenVar    = "GUARD_FAIL_OPEN"
)

// RequiredVars lists the settings the dashboard cannot start without.
var RequiredVars = []string{
	oidcIssuerVar,
	oidcClientIDVar,
	oidcClientSecretVar,
	sessionSecretVar,
	baseURLVar,
	backendURLVar,
}

type EnvVars struct {
	Port     string `yaml:"port"`
	AppName  string `yaml:"app_name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	BaseURL  string `yaml:"base_url"` // Public URL of the dashboard, e.g. "https://dashboard.example.com"
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetBaseURL returns the public base URL, used for the OIDC redirect URI and
// to decide which callback targets are same-origin.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

// Duration is a time.Duration that reads "15s" style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
