// Package config handles loading, validating, and writing the llmpath
// configuration file.
//
// The config defines:
//   - Proxy bind address, upstream target, capture output, and timeouts
//   - Capture path filters (include/exclude globs)
//   - Viewer bind address
//   - Logging level and format
//
// Every field has a default; command-line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values parse from Go duration
// strings like "30s" or "5m".
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level llmpath configuration. Loaded from llmpath.yaml
// (or the --config path), with defaults for fields that are not set.
type Config struct {
	Proxy   ProxyConfig   `yaml:"proxy"`
	Capture CaptureConfig `yaml:"capture"`
	Viewer  ViewerConfig  `yaml:"viewer"`
	Log     LogConfig     `yaml:"log"`
}

// ProxyConfig defines where the proxy listens and forwards.
// Default bind: 127.0.0.1:8080 (loopback only, never 0.0.0.0).
type ProxyConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Target         string   `yaml:"target"`
	Output         string   `yaml:"output"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
}

// CaptureConfig filters which request paths get recorded. Include and
// exclude are glob patterns matched against the raw request path; exclude
// wins.
type CaptureConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// ViewerConfig defines where the viewer server listens.
type ViewerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig controls diagnostic logging on stderr. Level is one of debug,
// info, warn, error; format is text or json.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config at the given path. A missing file is
// not an error: defaults apply, which is normal before `llmpath config
// init` has run. Unknown keys, invalid YAML, and validation failures are
// errors.
func Load(path string) (*Config, error) {
	cfg := applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes a default config with all fields populated and a
// comment header. Used by `llmpath config init`.
func WriteDefault(path string) error {
	cfg := applyDefaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := `# llmpath configuration
#
# proxy:
#   host, port: Where the capture proxy listens (default: 127.0.0.1:8080)
#   target:     Upstream API base URL, e.g. https://api.openai.com
#   output:     Capture log path (JSONL, append-only)
#   connect_timeout: Upstream dial timeout
#   idle_timeout:    Max silence between streamed chunks
#
# capture:
#   include, exclude: Glob patterns over request paths; exclude wins
#
# viewer:
#   host, port: Where the viewer serves the cooked artifact UI
#
# log:
#   level:  debug | info | warn | error
#   format: text | json

`
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

// applyDefaults returns a Config with every field set to its default.
func applyDefaults() *Config {
	return &Config{
		Proxy: ProxyConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			Target:         "https://api.openai.com",
			Output:         "traces.jsonl",
			ConnectTimeout: Duration(30 * time.Second),
			IdleTimeout:    Duration(5 * time.Minute),
		},
		Capture: CaptureConfig{
			Include: []string{"*"},
			Exclude: []string{},
		},
		Viewer: ViewerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// validate checks the config for logical errors after parsing.
func validate(cfg *Config) error {
	if cfg.Proxy.Host == "" {
		return fmt.Errorf("proxy.host must not be empty")
	}
	if cfg.Proxy.Port < 1 || cfg.Proxy.Port > 65535 {
		return fmt.Errorf("proxy.port %d out of range (1-65535)", cfg.Proxy.Port)
	}
	if cfg.Viewer.Host == "" {
		return fmt.Errorf("viewer.host must not be empty")
	}
	if cfg.Viewer.Port < 1 || cfg.Viewer.Port > 65535 {
		return fmt.Errorf("viewer.port %d out of range (1-65535)", cfg.Viewer.Port)
	}
	if cfg.Proxy.ConnectTimeout < 0 {
		return fmt.Errorf("proxy.connect_timeout must be non-negative")
	}
	if cfg.Proxy.IdleTimeout < 0 {
		return fmt.Errorf("proxy.idle_timeout must be non-negative")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q not one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q not one of text, json", cfg.Log.Format)
	}
	return nil
}
