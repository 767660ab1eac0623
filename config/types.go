package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/intenvy/down-to-earth/fetch"
	"github.com/intenvy/down-to-earth/httpclient"
	"github.com/intenvy/down-to-earth/observability"
)

// Config represents the overall application configuration structure.
// It includes sections for application settings, logging, the fetch mechanism,
// the HTTP transport, observability export and the upstream REST clients.
// The embedded koanf.Koanf instance allows for flexible access to
// additional custom configurations not explicitly defined in the struct.
type Config struct {
	App           AppConfig               `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	Log           LogConfig               `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Fetch         fetch.Config            `koanf:"fetch" json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	HTTP          HTTPConfig              `koanf:"http" json:"http" yaml:"http" mapstructure:"http"`
	Observability observability.Config    `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability"`
	Clients       map[string]ClientConfig `koanf:"clients" json:"clients" yaml:"clients" mapstructure:"clients" validate:"dive"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" mapstructure:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" mapstructure:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// HTTPConfig holds the transport settings shared by every client.
type HTTPConfig struct {
	Timeout        time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	DefaultHeaders map[string]string `koanf:"defaultheaders" json:"defaultheaders" yaml:"defaultheaders" mapstructure:"defaultheaders"`
	// Session keeps one connection pool per client; false dials a fresh connection per call.
	Session            bool `koanf:"session" json:"session" yaml:"session" mapstructure:"session"`
	// MaxRedirects of -1 returns redirect responses unfollowed. Zero is rejected.
	MaxRedirects       int  `koanf:"maxredirects" json:"maxredirects" yaml:"maxredirects" mapstructure:"maxredirects" validate:"min=-1,ne=0"`
	Tracing            bool `koanf:"tracing" json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	LogPayloads        bool `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads" mapstructure:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" mapstructure:"maxpayloadlogbytes" validate:"min=0"`
}

// ClientConfig describes one upstream REST API.
type ClientConfig struct {
	Domain string `koanf:"domain" json:"domain" yaml:"domain" mapstructure:"domain" validate:"required,url"`
	APIKey string `koanf:"apikey" json:"apikey" yaml:"apikey" mapstructure:"apikey"`
	Secret string `koanf:"secret" json:"secret" yaml:"secret" mapstructure:"secret"`
	// KeyHeader carries APIKey on signed calls.
	KeyHeader       string `koanf:"keyheader" json:"keyheader" yaml:"keyheader" mapstructure:"keyheader"`
	SignatureHeader string `koanf:"signatureheader" json:"signatureheader" yaml:"signatureheader" mapstructure:"signatureheader"`
	TimestampParam  string `koanf:"timestampparam" json:"timestampparam" yaml:"timestampparam" mapstructure:"timestampparam"`
}

// Signed reports whether the client has the credentials needed to sign calls.
func (c ClientConfig) Signed() bool {
	return c.Secret != ""
}

// HTTPClientConfig converts the http section into a transport configuration.
func (c *Config) HTTPClientConfig() httpclient.Config {
	return httpclient.Config{
		Timeout:            c.HTTP.Timeout,
		DefaultHeaders:     c.HTTP.DefaultHeaders,
		Session:            c.HTTP.Session,
		MaxRedirects:       c.HTTP.MaxRedirects,
		Tracing:            c.HTTP.Tracing,
		LogPayloads:        c.HTTP.LogPayloads,
		MaxPayloadLogBytes: c.HTTP.MaxPayloadLogBytes,
	}
}
