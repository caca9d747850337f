package config

import (
	"strings"
	"time"
)

type BackendConfig interface {
	GetBackendURL() string
	GetBackendTimeout() time.Duration
}

type Backend struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

var _ BackendConfig = Backend{}

func (b Backend) GetBackendURL() string {
	return strings.TrimSuffix(b.URL, "/")
}

func (b Backend) GetBackendTimeout() time.Duration {
	return time.Duration(b.Timeout)
}
