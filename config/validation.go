package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

// newValidator reports fields by their koanf key so errors point at the config path.
func newValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		structValidator = v
	})
	return structValidator
}

// Validate checks cfg. Struct tag violations are reported as *ConfigError values
// joined together; section checks that belong to other packages are wrapped.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewValidationError("config", "cannot be nil")
	}

	if err := newValidator().Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		errs := make([]error, 0, len(validationErrors))
		for _, fe := range validationErrors {
			errs = append(errs, toConfigError(fe))
		}
		return errors.Join(errs...)
	}

	if err := cfg.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}

	obs := cfg.Observability
	obs.ApplyDefaults()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}

	return nil
}

func toConfigError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field, envVar(field), field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewValidationError(field, "must be an absolute url")
	case "min", "gte":
		return NewValidationError(field, fmt.Sprintf("must be at least %s", fe.Param()))
	case "max", "lte":
		return NewValidationError(field, fmt.Sprintf("must be at most %s", fe.Param()))
	case "ne":
		return NewValidationError(field, fmt.Sprintf("must not be %s", fe.Param()))
	case "gt":
		return NewValidationError(field, fmt.Sprintf("must be greater than %s", fe.Param()))
	default:
		return NewValidationError(field, fmt.Sprintf("failed %s validation", fe.Tag()))
	}
}

// fieldPath turns "Config.clients[binance].domain" into "clients.binance.domain".
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		path = namespace
	}
	path = strings.ReplaceAll(path, "[", ".")
	return strings.ReplaceAll(path, "]", "")
}

func envVar(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
