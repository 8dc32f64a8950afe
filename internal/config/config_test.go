package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/breeze-rmm/fbcgrab/internal/capture"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fbcgrab.yaml")
	data := "target: DP-0\nframerate: ntsc\npixel_format: nv12\nwidth: 1280\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FBCGRAB_DESTINATION", "cuda")
	t.Setenv("FBCGRAB_HEIGHT", "720")

	cfg, err := LoadFrom(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Target != "DP-0" || cfg.Framerate != "ntsc" || cfg.PixelFormat != "nv12" {
		t.Fatalf("file values not loaded: %+v", cfg)
	}
	if cfg.Destination != "cuda" || cfg.Height != 720 || cfg.Width != 1280 {
		t.Fatalf("env values not loaded: %+v", cfg)
	}
	if !cfg.WithCursor || cfg.LogMaxBackups != 3 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadFromMissingExplicitFile(t *testing.T) {
	if _, err := LoadFrom(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	result := Default().ValidateTiered()
	if result.HasFatals() || len(result.Warnings) != 0 {
		t.Fatalf("default config: fatals=%v warnings=%v", result.Fatals, result.Warnings)
	}
}

func TestValidateTieredFatals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown format", func(c *Config) { c.PixelFormat = "p010" }, "pixel_format"},
		{"uncapturable format", func(c *Config) { c.PixelFormat = "yuv420p" }, "cannot be captured"},
		{"bad framerate", func(c *Config) { c.Framerate = "fast" }, "framerate"},
		{"bad destination", func(c *Config) { c.Destination = "vulkan" }, "destination"},
		{"bad device", func(c *Config) { c.Destination = "cuda"; c.Device = "gpu0" }, "cuda device ordinal"},
		{"negative size", func(c *Config) { c.Width = -1 }, "must not be negative"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		result := cfg.ValidateTiered()
		if !result.HasFatals() {
			t.Fatalf("%s: expected a fatal", tt.name)
		}
		found := false
		for _, err := range result.Fatals {
			if strings.Contains(err.Error(), tt.want) {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: fatals %v do not mention %q", tt.name, result.Fatals, tt.want)
		}
	}
}

func TestValidateTieredClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.StatsIntervalSeconds = -3
	cfg.LogMaxSizeMB = 0
	cfg.LogMaxBackups = 99

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped values should not be fatal: %v", result.Fatals)
	}
	if len(result.Warnings) != 3 {
		t.Fatalf("warnings = %v, want 3", result.Warnings)
	}
	if cfg.StatsIntervalSeconds != 0 || cfg.LogMaxSizeMB != 1 || cfg.LogMaxBackups != 20 {
		t.Fatalf("values not clamped: %+v", cfg)
	}
}

func TestCaptureOptions(t *testing.T) {
	cfg := Default()
	cfg.Target = "+10+10"
	cfg.PixelFormat = "nv12"
	cfg.Framerate = "30000/1001"
	cfg.Destination = "cuda"
	cfg.Device = "1"
	cfg.WithCursor = false

	opts, err := cfg.CaptureOptions()
	if err != nil {
		t.Fatalf("CaptureOptions: %v", err)
	}
	if opts.Target != "+10+10" || opts.PixelFormat != pixfmt.NV12 || opts.Device != "1" || opts.WithCursor {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.Framerate != (capture.Rational{Num: 30000, Den: 1001}) || opts.Destination != capture.DestinationCUDA {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Default().WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"framerate: pal", "pixel_format: bgra", "with_cursor: true"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
