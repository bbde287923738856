package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	body = strings.ReplaceAll(body, "$DIR", dir)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultMatchesKioskTimings(t *testing.T) {
	cfg := Default()
	if got := cfg.Kiosk.CaptureInterval(); got != 750*time.Millisecond {
		t.Errorf("capture interval = %v", got)
	}
	if got := cfg.Kiosk.SettleDelay(); got != 2*time.Second {
		t.Errorf("settle delay = %v", got)
	}
	if got := cfg.Kiosk.ResultDisplay(); got != 5*time.Second {
		t.Errorf("result display = %v", got)
	}
	if got := cfg.Kiosk.UnknownTimeout(); got != 0 {
		t.Errorf("unknown timeout = %v", got)
	}
	if cfg.Transport.Port != 8000 || cfg.Transport.Path != "/ws/camera" {
		t.Errorf("transport defaults = %+v", cfg.Transport)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
kiosk:
  id: front-door
  data_dir: $DIR/data
  settle_delay_ms: 1000
camera:
  source: still
  still_path: $DIR/frames
db:
  file: $DIR/data/attendance.db
snapshots:
  enabled: true
  dir: $DIR/snapshots
`)
	t.Setenv("KIOSK_KIOSK_CAPTURE_INTERVAL_MS", "500")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kiosk.ID != "front-door" {
		t.Errorf("id = %q", cfg.Kiosk.ID)
	}
	if cfg.Kiosk.SettleDelayMs != 1000 {
		t.Errorf("settle delay = %d", cfg.Kiosk.SettleDelayMs)
	}
	if cfg.Kiosk.CaptureIntervalMs != 500 {
		t.Errorf("capture interval = %d, want env override 500", cfg.Kiosk.CaptureIntervalMs)
	}
	if cfg.Kiosk.ResultDisplayMs != 5000 {
		t.Errorf("result display = %d, want default", cfg.Kiosk.ResultDisplayMs)
	}
	if _, err := os.Stat(cfg.Snapshots.Dir); err != nil {
		t.Errorf("snapshot dir not created: %v", err)
	}
}

func TestLoadGeneratesKioskID(t *testing.T) {
	path := writeConfig(t, `
kiosk:
  data_dir: $DIR/data
db:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(cfg.Kiosk.ID, "kiosk-") {
		t.Errorf("generated id = %q", cfg.Kiosk.ID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Kiosk.CaptureIntervalMs = 0 }, "capture_interval_ms"},
		{"negative settle", func(c *Config) { c.Kiosk.SettleDelayMs = -1 }, "settle_delay_ms"},
		{"group with brace", func(c *Config) { c.Kiosk.Group = "a}b" }, "kiosk.group"},
		{"still without path", func(c *Config) { c.Camera.Source = "still" }, "still_path"},
		{"bad source", func(c *Config) { c.Camera.Source = "scanner" }, "camera.source"},
		{"bad format", func(c *Config) { c.Camera.ImageFormat = "gif" }, "image_format"},
		{"bad quality", func(c *Config) { c.Camera.JPEGQuality = 0 }, "jpeg_quality"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
