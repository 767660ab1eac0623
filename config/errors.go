package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured marks an optional section that was left out on purpose.
var ErrNotConfigured = errors.New("not configured")

// ConfigError categories.
const (
	CategoryMissing       = "missing"
	CategoryInvalid       = "invalid"
	CategoryNotConfigured = "not_configured"
)

// ConfigError describes a configuration problem and, where possible, how to fix it.
// Messages are lowercase.
//
//nolint:revive // the package name prefix reads better at call sites outside the package
type ConfigError struct {
	Category string
	// Field is the koanf path, e.g. "fetch.maxattempts" or "clients.binance.domain".
	Field   string
	Message string
	Action  string
	Details []string
}

// Error renders "config_<category>: <field> <message> <action> <details>", skipping empty parts.
func (e *ConfigError) Error() string {
	parts := make([]string, 0, 5)
	if e.Category != "" {
		parts = append(parts, "config_"+e.Category+":")
	}
	for _, p := range []string{e.Field, e.Message, e.Action} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, " ")
}

// Unwrap returns nil; a ConfigError is a leaf.
func (e *ConfigError) Unwrap() error {
	return nil
}

// NewMissingFieldError reports a required field that has no value.
func NewMissingFieldError(field, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", envVar, yamlPath, DefaultFile),
	}
}

// NewInvalidFieldError reports a value outside validOptions.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := NewValidationError(field, message)
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}

// NewNotConfiguredError reports an optional section that is absent.
func NewNotConfiguredError(feature, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryNotConfigured,
		Field:    feature,
		Message:  "(optional)",
		Action:   fmt.Sprintf("to enable: set %s env var or add %s to %s", envVar, yamlPath, DefaultFile),
	}
}

// NewValidationError reports a field whose value failed a check.
func NewValidationError(field, message string) *ConfigError {
	return &ConfigError{
		Category: CategoryInvalid,
		Field:    field,
		Message:  message,
	}
}

// IsNotConfigured reports whether err marks an intentionally absent section.
func IsNotConfigured(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return true
	}
	var configErr *ConfigError
	return errors.As(err, &configErr) && configErr.Category == CategoryNotConfigured
}
