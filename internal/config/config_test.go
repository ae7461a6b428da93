package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NonexistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Load with nonexistent file should not error: %v", err)
	}

	// Verify defaults.
	if cfg.Proxy.Host != "127.0.0.1" {
		t.Errorf("default host: expected 127.0.0.1, got %q", cfg.Proxy.Host)
	}
	if cfg.Proxy.Port != 8080 {
		t.Errorf("default port: expected 8080, got %d", cfg.Proxy.Port)
	}
	if cfg.Proxy.Target != "https://api.openai.com" {
		t.Errorf("default target: got %q", cfg.Proxy.Target)
	}
	if cfg.Proxy.Output != "traces.jsonl" {
		t.Errorf("default output: got %q", cfg.Proxy.Output)
	}
	if cfg.Proxy.ConnectTimeout.Std() != 30*time.Second {
		t.Errorf("default connect_timeout: got %v", cfg.Proxy.ConnectTimeout.Std())
	}
	if cfg.Proxy.IdleTimeout.Std() != 5*time.Minute {
		t.Errorf("default idle_timeout: got %v", cfg.Proxy.IdleTimeout.Std())
	}
	if len(cfg.Capture.Include) != 1 || cfg.Capture.Include[0] != "*" {
		t.Errorf("default include: got %v", cfg.Capture.Include)
	}
	if len(cfg.Capture.Exclude) != 0 {
		t.Errorf("default exclude: got %v", cfg.Capture.Exclude)
	}
	if cfg.Viewer.Port != 8000 {
		t.Errorf("default viewer port: expected 8000, got %d", cfg.Viewer.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("default log: got %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
proxy:
  host: "0.0.0.0"
  port: 9090
  target: "https://api.anthropic.com"
  output: "captures/run.jsonl"
  connect_timeout: 10s
  idle_timeout: 2m
capture:
  include: ["/v1/*"]
  exclude: ["/v1/models"]
viewer:
  host: "127.0.0.1"
  port: 9000
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Proxy.Host != "0.0.0.0" || cfg.Proxy.Port != 9090 {
		t.Errorf("proxy bind: got %s:%d", cfg.Proxy.Host, cfg.Proxy.Port)
	}
	if cfg.Proxy.Target != "https://api.anthropic.com" {
		t.Errorf("target: got %q", cfg.Proxy.Target)
	}
	if cfg.Proxy.Output != "captures/run.jsonl" {
		t.Errorf("output: got %q", cfg.Proxy.Output)
	}
	if cfg.Proxy.ConnectTimeout.Std() != 10*time.Second {
		t.Errorf("connect_timeout: got %v", cfg.Proxy.ConnectTimeout.Std())
	}
	if cfg.Proxy.IdleTimeout.Std() != 2*time.Minute {
		t.Errorf("idle_timeout: got %v", cfg.Proxy.IdleTimeout.Std())
	}
	if len(cfg.Capture.Include) != 1 || cfg.Capture.Include[0] != "/v1/*" {
		t.Errorf("include: got %v", cfg.Capture.Include)
	}
	if len(cfg.Capture.Exclude) != 1 || cfg.Capture.Exclude[0] != "/v1/models" {
		t.Errorf("exclude: got %v", cfg.Capture.Exclude)
	}
	if cfg.Viewer.Port != 9000 {
		t.Errorf("viewer port: got %d", cfg.Viewer.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log: got %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(`{{{invalid yaml`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
proxy:
  prot: 9090
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown key (likely a typo)")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
proxy:
  connect_timeout: "thirty seconds"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
proxy:
  port: 9090
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// Port overridden, everything else retains defaults.
	if cfg.Proxy.Port != 9090 {
		t.Errorf("port: expected 9090, got %d", cfg.Proxy.Port)
	}
	if cfg.Proxy.Host != "127.0.0.1" {
		t.Errorf("host should be default 127.0.0.1, got %q", cfg.Proxy.Host)
	}
	if cfg.Proxy.IdleTimeout.Std() != 5*time.Minute {
		t.Errorf("idle_timeout should be default, got %v", cfg.Proxy.IdleTimeout.Std())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return applyDefaults() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty proxy host", func(c *Config) { c.Proxy.Host = "" }, true},
		{"proxy port 0", func(c *Config) { c.Proxy.Port = 0 }, true},
		{"proxy port 65536", func(c *Config) { c.Proxy.Port = 65536 }, true},
		{"viewer port 0", func(c *Config) { c.Viewer.Port = 0 }, true},
		{"negative idle timeout", func(c *Config) { c.Proxy.IdleTimeout = Duration(-time.Second) }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "logfmt" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestWriteDefault_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after WriteDefault: %v", err)
	}
	if cfg.Proxy.Port != 8080 {
		t.Errorf("roundtrip port: expected 8080, got %d", cfg.Proxy.Port)
	}
	if cfg.Proxy.ConnectTimeout.Std() != 30*time.Second {
		t.Errorf("roundtrip connect_timeout: got %v", cfg.Proxy.ConnectTimeout.Std())
	}
}
