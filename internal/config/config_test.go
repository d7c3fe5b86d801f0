package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
base_url: http://backend:9000
timeout_sec: 30
data_dir: /var/lib/memegen
verbose: true
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.BaseURL != "http://backend:9000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.TimeoutSec != 30 {
		t.Errorf("TimeoutSec = %d", cfg.TimeoutSec)
	}
	if cfg.DataDir != "/var/lib/memegen" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(``))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.TimeoutSec != 120 {
		t.Errorf("TimeoutSec = %d", cfg.TimeoutSec)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir not defaulted")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", `base_url: [`},
		{"negative timeout", `timeout_sec: -1`},
		{"base url without scheme", `base_url: backend:9000`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("Parse() error = nil, want failure")
			}
		})
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://backend:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://backend:9000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want failure for an explicit missing file")
	}
	if !strings.Contains(err.Error(), "read") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://from-file:9000\ntimeout_sec: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEMEGEN_BASE_URL", "http://from-env:9000")
	t.Setenv("MEMEGEN_TIMEOUT_SEC", "45")
	t.Setenv("MEMEGEN_VERBOSE", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "http://from-env:9000" {
		t.Errorf("BaseURL = %q, want the environment to win", cfg.BaseURL)
	}
	if cfg.TimeoutSec != 45 {
		t.Errorf("TimeoutSec = %d, want 45", cfg.TimeoutSec)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false")
	}
}

func TestLoad_BadEnvTimeoutIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("timeout_sec: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEMEGEN_TIMEOUT_SEC", "soon")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TimeoutSec != 30 {
		t.Errorf("TimeoutSec = %d, want the file value kept", cfg.TimeoutSec)
	}
}

func TestDBPath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/memegen"}
	if got := cfg.DBPath(); got != filepath.Join("/var/lib/memegen", "state.db") {
		t.Errorf("DBPath() = %q", got)
	}
}
