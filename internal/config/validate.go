package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/breeze-rmm/fbcgrab/internal/capture"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that must stop startup from values
// that were clamped to a safe range.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// ValidateTiered checks the config. Out-of-range numeric settings are
// clamped in place and reported as warnings.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	f, err := pixfmt.Parse(c.PixelFormat)
	if err != nil {
		r.Fatals = append(r.Fatals, fmt.Errorf("pixel_format: %w", err))
	} else if f != pixfmt.None && !slices.Contains(capture.SupportedFormats(), f) {
		r.Fatals = append(r.Fatals, fmt.Errorf("pixel_format %q cannot be captured (use one of %s)",
			c.PixelFormat, formatList()))
	}

	if c.Framerate != "" {
		if _, err := capture.ParseFramerate(c.Framerate); err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("framerate: %w", err))
		}
	}

	dest, err := capture.ParseDestination(c.Destination)
	if err != nil {
		r.Fatals = append(r.Fatals, fmt.Errorf("destination: %w", err))
	}
	if dest == capture.DestinationCUDA && c.Device != "" {
		if n, err := strconv.Atoi(c.Device); err != nil || n < 0 {
			r.Fatals = append(r.Fatals, fmt.Errorf("device %q is not a cuda device ordinal", c.Device))
		}
	}

	if c.Width < 0 || c.Height < 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("frame size %dx%d must not be negative", c.Width, c.Height))
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Fatals = append(r.Fatals, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Fatals = append(r.Fatals, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.StatsIntervalSeconds < 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("stats_interval_seconds %d is negative, disabling", c.StatsIntervalSeconds))
		c.StatsIntervalSeconds = 0
	} else if c.StatsIntervalSeconds > 3600 {
		r.Warnings = append(r.Warnings, fmt.Errorf("stats_interval_seconds %d exceeds maximum 3600, clamping", c.StatsIntervalSeconds))
		c.StatsIntervalSeconds = 3600
	}

	if c.LogMaxSizeMB < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1
	} else if c.LogMaxSizeMB > 1024 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_size_mb %d exceeds maximum 1024, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1024
	}

	if c.LogMaxBackups < 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_backups %d is negative, clamping", c.LogMaxBackups))
		c.LogMaxBackups = 0
	} else if c.LogMaxBackups > 20 {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_max_backups %d exceeds maximum 20, clamping", c.LogMaxBackups))
		c.LogMaxBackups = 20
	}

	return r
}

func formatList() string {
	names := make([]string, 0, len(capture.SupportedFormats()))
	for _, f := range capture.SupportedFormats() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}
