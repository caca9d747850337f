package config

import "time"

// MinSessionSecretLength is the shortest accepted SESSION_SECRET.
const MinSessionSecretLength = 32

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionMaxAge() time.Duration
}

type Session struct {
	Secret string   `yaml:"secret"`
	MaxAge Duration `yaml:"max_age"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionSecret() string {
	return s.Secret
}

func (s Session) GetSessionMaxAge() time.Duration {
	return time.Duration(s.MaxAge) // Absolute lifetime from sign-in, independent of token expiry
}
