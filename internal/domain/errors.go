package domain

import (
	"errors"
	"fmt"
)

// ErrNoGeometry marks a hazard that carries neither a shape nor a zone list.
var ErrNoGeometry = errors.New("hazard has no geometry")

// ConfigError reports incomplete or malformed reference data. It is the only
// error that stops a run, and it is raised before any fetch.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// NewConfigError formats a ConfigError for the given field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
