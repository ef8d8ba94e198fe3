package rdtcore

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ConfigError reports a scenario parameter outside its valid range
// (spec.md §7, "ConfigInvalid"). The driver/CLI surfaces it as exit code
// 2 and never attempts to run the scenario.
type ConfigError struct {
	Field string
	Value any
	cause error
}

func NewConfigError(field string, value any, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, cause: errors.New(reason)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Field, e.Value, e.cause)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// RunTimeoutError reports that a single run exceeded its safety bound
// (spec.md §7, "RunTimeout"). It is recorded against the run and excluded
// from the scenario's means, but is never a hard failure: the next run
// proceeds.
type RunTimeoutError struct {
	Bound time.Duration
}

func (e *RunTimeoutError) Error() string {
	return fmt.Sprintf("run exceeded its safety bound of %v", e.Bound)
}
