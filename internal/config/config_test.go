package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Chart.RefreshInterval != time.Second {
		t.Errorf("default refresh = %v, want 1s", cfg.Chart.RefreshInterval)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
  auth_token: "secret"
harness:
  url: "ws://10.0.0.5:9736/events"
chart:
  refresh_interval: 500ms
  render_once: true
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.AuthToken != "secret" {
		t.Errorf("auth token = %q, want secret", cfg.Server.AuthToken)
	}
	if cfg.Harness.URL != "ws://10.0.0.5:9736/events" {
		t.Errorf("harness url = %q", cfg.Harness.URL)
	}
	if cfg.Chart.RefreshInterval != 500*time.Millisecond {
		t.Errorf("refresh = %v, want 500ms", cfg.Chart.RefreshInterval)
	}
	if !cfg.Chart.RenderOnce {
		t.Error("render_once should be true")
	}
	// Unset sections keep defaults.
	if cfg.Harness.ReconnectBase != time.Second {
		t.Errorf("reconnect base = %v, want 1s", cfg.Harness.ReconnectBase)
	}
}

func TestRefreshIntervalClamped(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"20ms", 100 * time.Millisecond},
		{"10s", 3 * time.Second},
		{"2s", 2 * time.Second},
	}

	for _, tt := range tests {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "config.yaml")
		yaml := "chart:\n  refresh_interval: " + tt.in + "\n"
		if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(cfgPath)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg.Chart.RefreshInterval != tt.want {
			t.Errorf("refresh_interval %s clamped to %v, want %v", tt.in, cfg.Chart.RefreshInterval, tt.want)
		}
	}
}
