// Package config loads the runtime configuration.
//
// Configuration is read from a TOML, YAML or JSON file chosen by extension,
// then selected environment variables are applied on top and the result is
// validated. Command line flags are applied by the caller last.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/machinefabric/pdbridge-go/wire"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load and Resolve
const (
	EnvConfigPath  = "PDBRIDGE_CONFIG"
	EnvLogLevel    = "PDBRIDGE_LOG_LEVEL"
	EnvLogFormat   = "PDBRIDGE_LOG_FORMAT"
	EnvCodec       = "PDBRIDGE_CODEC"
	EnvMetricsAddr = "PDBRIDGE_METRICS_ADDR"
)

// DefaultMetricsAddress is used when metrics are enabled without an address
const DefaultMetricsAddress = "127.0.0.1:9464"

// Config is the root runtime configuration
type Config struct {
	Logging  Logging  `toml:"logging" yaml:"logging" json:"logging"`
	Protocol Protocol `toml:"protocol" yaml:"protocol" json:"protocol"`
	Metrics  Metrics  `toml:"metrics" yaml:"metrics" json:"metrics"`
	Host     Host     `toml:"host" yaml:"host" json:"host"`
}

// Logging controls diagnostic output. Diagnostics never go to stdout.
type Logging struct {
	Format     string `toml:"format" yaml:"format" json:"format,omitempty" validate:"omitempty,oneof=text json logfmt" jsonschema:"enum=text,enum=json,enum=logfmt"`
	Level      string `toml:"level" yaml:"level" json:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error" jsonschema:"enum=debug,enum=info,enum=warn,enum=warning,enum=error"`
	File       string `toml:"file" yaml:"file" json:"file,omitempty" jsonschema:"description=Rotating log file written in addition to stderr"`
	AddSource  bool   `toml:"add_source" yaml:"add_source" json:"add_source,omitempty"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb,omitempty" validate:"min=0"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups" json:"max_backups,omitempty" validate:"min=0"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days" json:"max_age_days,omitempty" validate:"min=0"`
}

// Protocol configures the wire codec
type Protocol struct {
	Codec           string `toml:"codec" yaml:"codec" json:"codec,omitempty" validate:"omitempty,oneof=jsonl json cbor" jsonschema:"enum=jsonl,enum=json,enum=cbor"`
	MaxRecordBytes  int    `toml:"max_record_bytes" yaml:"max_record_bytes" json:"max_record_bytes,omitempty" validate:"min=0,max=16777216"`
	Strict          bool   `toml:"strict" yaml:"strict" json:"strict,omitempty" jsonschema:"description=Validate inbound records against the message schema"`
	ReadBufferBytes int    `toml:"read_buffer_bytes" yaml:"read_buffer_bytes" json:"read_buffer_bytes,omitempty" validate:"min=0"`
}

// Limits returns the record limits for the configured size
func (p Protocol) Limits() wire.Limits {
	return wire.Limits{MaxRecord: p.MaxRecordBytes}.Normalize()
}

// Metrics configures the optional Prometheus endpoint
type Metrics struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" json:"enabled,omitempty"`
	Address string `toml:"address" yaml:"address" json:"address,omitempty" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

// Host describes the host object when no flags override it
type Host struct {
	Inlets  int `toml:"inlets" yaml:"inlets" json:"inlets,omitempty" validate:"min=1" jsonschema:"minimum=1"`
	Outlets int `toml:"outlets" yaml:"outlets" json:"outlets,omitempty" validate:"min=1" jsonschema:"minimum=1"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Logging: Logging{
			Format:     "text",
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Protocol: Protocol{
			Codec:           wire.CodecJSONLines,
			MaxRecordBytes:  wire.DefaultMaxRecord,
			ReadBufferBytes: 4096,
		},
		Metrics: Metrics{
			Address: DefaultMetricsAddress,
		},
		Host: Host{Inlets: 1, Outlets: 1},
	}
}

// validate is shared; validator caches struct metadata
var validate = validator.New()

// Validate checks field constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Resolve loads the file at path, or the file named by PDBRIDGE_CONFIG when
// path is empty. Without either, defaults plus environment are returned.
func Resolve(path string) (Config, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path == "" {
		cfg := Default()
		applyEnvOverrides(&cfg)
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	return Load(path)
}

// Load reads, parses and validates the configuration file at path
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(content, formatFromPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func formatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Parse decodes content in format ("toml", "yaml", "yml" or "json") over the
// defaults. Unknown keys are an error.
func Parse(content []byte, format string) (Config, error) {
	cfg := Default()

	switch format {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(content))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, err
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(content))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", format)
	}

	return cfg, nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config
func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv(EnvLogLevel)); value != "" {
		cfg.Logging.Level = strings.ToLower(value)
	}
	if value := strings.TrimSpace(os.Getenv(EnvLogFormat)); value != "" {
		cfg.Logging.Format = strings.ToLower(value)
	}
	if value := strings.TrimSpace(os.Getenv(EnvCodec)); value != "" {
		cfg.Protocol.Codec = strings.ToLower(value)
	}
	if value := strings.TrimSpace(os.Getenv(EnvMetricsAddr)); value != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = value
	}
}

// Schema returns the JSON schema of Config
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
