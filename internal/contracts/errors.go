package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrDataInsufficient marks a recoverable per-unit condition: too little history,
	// a missing entry or exit price, or an empty trading calendar.
	ErrDataInsufficient = errors.New("insufficient data")

	// ErrUpstreamUnavailable is returned by vendor clients when the API cannot be reached
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ConfigurationError is a caller mistake detected before any computation starts
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// NewConfigurationError builds a ConfigurationError
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
