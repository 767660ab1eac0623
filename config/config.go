package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/intenvy/down-to-earth/fetch"
	"github.com/intenvy/down-to-earth/httpclient"
	"github.com/intenvy/down-to-earth/logger"
	"github.com/intenvy/down-to-earth/retry"
)

const (
	// EnvPrefix marks the environment variables read as overrides. D2E_FETCH_MAXATTEMPTS
	// maps to fetch.maxattempts.
	EnvPrefix = "D2E_"

	// DefaultFile is the optional YAML file read by Load.
	DefaultFile = "config.yaml"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml, then config.<app.env>.yaml, both optional
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadOptionalFile(k, DefaultFile); err != nil {
		return nil, err
	}
	if env := k.String("app.env"); env != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", env)); err != nil {
			return nil, err
		}
	}

	return finish(k)
}

// LoadFile loads defaults, then the YAML file at path, then environment overrides.
// Unlike Load the file is required.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return finish(k)
}

// LoadYAML loads defaults, then the YAML document in data, then environment overrides.
func LoadYAML(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return finish(k)
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey converts D2E_UPPER_CASE to upper.case for koanf. Comma separated values
// become lists so status codes and categories can be overridden.
func envKey(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", ".")
	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "down-to-earth",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"fetch.ratelimitpersecond": fetch.DefaultRateLimitPerSecond,
		"fetch.concurrencylimit":   fetch.DefaultConcurrencyLimit,
		"fetch.firstdelay":         retry.DefaultFirstDelay.String(),
		"fetch.backoffexponent":    retry.DefaultExponent,
		"fetch.maxattempts":        retry.DefaultMaxAttempts,
		"fetch.backoff":            fetch.BackoffExponential,
		"fetch.limiter":            fetch.LimiterQueue,

		"http.timeout":            httpclient.DefaultTimeout.String(),
		"http.session":            true,
		"http.maxredirects":       httpclient.DefaultMaxRedirects,
		"http.tracing":            false,
		"http.logpayloads":        false,
		"http.maxpayloadlogbytes": httpclient.DefaultMaxPayloadLogBytes,

		// Observability stays off until explicitly enabled
		"observability.enabled":      false,
		"observability.service.name": "down-to-earth",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// String renders the configuration as JSON with credentials masked.
func (c *Config) String() string {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	masked, err := json.Marshal(logger.NewSensitiveDataFilter(nil).FilterFields(fields))
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(masked)
}
