package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jrsteele09/account-dashboard/internal/errors"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	OIDCConfig
	SessionConfig
	BackendConfig
	SecurityConfig
	Validate() error
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
}

type mainConfig struct {
	EnvVars  `yaml:",inline"`
	OIDC     `yaml:"oidc"`
	Session  `yaml:"session"`
	Backend  `yaml:"backend"`
	Security `yaml:"security"`
}

// Load builds the configuration once. Values from the optional YAML file at
// path are applied first, then any environment variable that is set wins.
func Load(path string) (Config, error) {
	c := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("[config Load] read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("[config Load] parse %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return c, nil
}

func defaults() *mainConfig {
	return &mainConfig{
		EnvVars: EnvVars{
			Port:     "8080",
			AppName:  "Account Dashboard",
			Env:      "DEV",
			LogLevel: "info",
		},
		OIDC: OIDC{
			Scopes:          []string{"openid", "email", "profile"},
			ProviderTimeout: Duration(10 * time.Second),
		},
		Session: Session{
			MaxAge: Duration(24 * time.Hour),
		},
		Backend: Backend{
			Timeout: Duration(15 * time.Second),
		},
		Security: Security{
			GuardFailOpen: true,
		},
	}
}

func (c *mainConfig) applyEnv(getenv func(string) string) error {
	setString(getenv, portEnvVar, &c.Port)
	setString(getenv, appNameVar, &c.AppName)
	setString(getenv, envVar, &c.Env)
	setString(getenv, logLevelVar, &c.LogLevel)
	setString(getenv, baseURLVar, &c.BaseURL)

	setString(getenv, oidcIssuerVar, &c.Issuer)
	setString(getenv, oidcClientIDVar, &c.ClientID)
	setString(getenv, oidcClientSecretVar, &c.ClientSecret)
	if v := getenv(oidcScopesVar); v != "" {
		c.Scopes = strings.Fields(v)
	}

	setString(getenv, sessionSecretVar, &c.Secret)
	setString(getenv, backendURLVar, &c.URL)

	var invalid []string
	for name, target := range map[string]*Duration{
		providerTimeoutVar: &c.ProviderTimeout,
		sessionMaxAgeVar:   &c.MaxAge,
		backendTimeoutVar:  &c.Timeout,
	} {
		if v := getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				invalid = append(invalid, name)
				continue
			}
			*target = Duration(d)
		}
	}
	if v := getenv(guardFailOpenVar); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.GuardFailOpen = true
		case "0", "false", "no":
			c.GuardFailOpen = false
		default:
			invalid = append(invalid, guardFailOpenVar)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &errors.ConfigurationError{Invalid: invalid}
	}
	return nil
}

// Validate reports every required setting that is missing or unusable.
func (c *mainConfig) Validate() error {
	var missing, invalid []string
	required := []struct {
		name  string
		value string
	}{
		{oidcIssuerVar, c.Issuer},
		{oidcClientIDVar, c.ClientID},
		{oidcClientSecretVar, c.ClientSecret},
		{sessionSecretVar, c.Secret},
		{baseURLVar, c.BaseURL},
		{backendURLVar, c.URL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if c.Secret != "" && len(c.Secret) < MinSessionSecretLength {
		invalid = append(invalid, sessionSecretVar)
	}
	for name, value := range map[string]string{oidcIssuerVar: c.Issuer, baseURLVar: c.BaseURL, backendURLVar: c.URL} {
		if value != "" && !isAbsoluteURL(value) {
			invalid = append(invalid, name)
		}
	}
	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return &errors.ConfigurationError{Missing: missing, Invalid: invalid}
}

func setString(getenv func(string) string, name string, target *string) {
	if v := getenv(name); v != "" {
		*target = v
	}
}
