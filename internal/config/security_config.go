package config

type SecurityConfig interface {
	GetGuardFailOpen() bool
}

type Security struct {
	GuardFailOpen bool `yaml:"guard_fail_open"`
}

var _ SecurityConfig = Security{}

// GetGuardFailOpen reports whether the route guard lets a request through when
// resolving its session fails unexpectedly. Every such pass is logged.
func (s Security) GetGuardFailOpen() bool {
	return s.GuardFailOpen
}
