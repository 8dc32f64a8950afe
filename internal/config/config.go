package config

import (
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/fbcgrab/internal/capture"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

const (
	EnvPrefix  = "FBCGRAB"
	configName = "fbcgrab"
	configDir  = "/etc/fbcgrab"
)

type Config struct {
	Display     string `mapstructure:"display" yaml:"display"`
	Target      string `mapstructure:"target" yaml:"target"`
	Width       int    `mapstructure:"width" yaml:"width"`
	Height      int    `mapstructure:"height" yaml:"height"`
	PixelFormat string `mapstructure:"pixel_format" yaml:"pixel_format"`
	Framerate   string `mapstructure:"framerate" yaml:"framerate"`
	Destination string `mapstructure:"destination" yaml:"destination"`
	Device      string `mapstructure:"device" yaml:"device"`
	WithCursor  bool   `mapstructure:"with_cursor" yaml:"with_cursor"`

	// StatsIntervalSeconds controls how often the capture command logs
	// grab metrics. Zero disables them.
	StatsIntervalSeconds int `mapstructure:"stats_interval_seconds" yaml:"stats_interval_seconds"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		PixelFormat:          capture.DefaultPixelFormat.String(),
		Framerate:            "pal",
		Destination:          capture.DestinationSystem.String(),
		WithCursor:           true,
		StatsIntervalSeconds: 10,
		LogLevel:             "info",
		LogFormat:            "text",
		LogMaxSizeMB:         50,
		LogMaxBackups:        3,
	}
}

// Load reads the config file (cfgFile, or fbcgrab.yaml in /etc/fbcgrab or
// the working directory) and FBCGRAB_* environment variables into the
// global viper instance, on top of Default.
func Load(cfgFile string) (*Config, error) {
	return LoadFrom(viper.GetViper(), cfgFile)
}

// LoadFrom is Load against a caller-supplied viper instance.
func LoadFrom(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := Default()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("display", cfg.Display)
	v.SetDefault("target", cfg.Target)
	v.SetDefault("width", cfg.Width)
	v.SetDefault("height", cfg.Height)
	v.SetDefault("pixel_format", cfg.PixelFormat)
	v.SetDefault("framerate", cfg.Framerate)
	v.SetDefault("destination", cfg.Destination)
	v.SetDefault("device", cfg.Device)
	v.SetDefault("with_cursor", cfg.WithCursor)
	v.SetDefault("stats_interval_seconds", cfg.StatsIntervalSeconds)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
}

// WriteYAML writes the effective configuration.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// CaptureOptions converts the config into capture options.
func (c *Config) CaptureOptions() (capture.Options, error) {
	opts := capture.DefaultOptions()
	opts.Display = c.Display
	opts.Target = c.Target
	opts.Width = c.Width
	opts.Height = c.Height
	opts.Device = c.Device
	opts.WithCursor = c.WithCursor

	f, err := pixfmt.Parse(c.PixelFormat)
	if err != nil {
		return opts, err
	}
	opts.PixelFormat = f

	if c.Framerate != "" {
		r, err := capture.ParseFramerate(c.Framerate)
		if err != nil {
			return opts, err
		}
		opts.Framerate = r
	}

	dest, err := capture.ParseDestination(c.Destination)
	if err != nil {
		return opts, err
	}
	opts.Destination = dest
	return opts, nil
}
