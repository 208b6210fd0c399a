package mastermind

import (
	"errors"
	"fmt"

	"crosswarped.com/mastermind/internal/respcache"
	"crosswarped.com/mastermind/pkg/primitives"
)

var (
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("invalid configuration")

	// ErrInconsistentFeedback is returned when no candidate agrees with the feedback given so far.
	ErrInconsistentFeedback = primitives.ErrInconsistentFeedback

	// ErrCacheIO is matched by failures to load or save the response cache. They are never fatal.
	ErrCacheIO = respcache.ErrCacheIO

	ErrInvalidState    = errors.New("invalid session state")
	ErrInvalidCode     = errors.New("invalid code")
	ErrInvalidFeedback = errors.New("invalid feedback")
)

// ConfigError reports a configuration that cannot be solved, found before any guess is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
