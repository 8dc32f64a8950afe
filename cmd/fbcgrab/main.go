package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/breeze-rmm/fbcgrab/internal/config"
	"github.com/breeze-rmm/fbcgrab/internal/logging"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:          "fbcgrab",
	Short:        "NVIDIA frame buffer capture",
	Long:         `fbcgrab - grab frames from the NVIDIA frame buffer capture library at a fixed rate`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fbcgrab v%s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return cfg.WriteYAML(cmd.OutOrStdout())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is /etc/fbcgrab/fbcgrab.yaml)")
	pf.String("display", "", "X display to capture (default $DISPLAY)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text or json)")
	pf.String("log-file", "", "also write logs to this file, rotated by size")

	bindFlag("display", pf.Lookup("display"))
	bindFlag("log_level", pf.Lookup("log-level"))
	bindFlag("log_format", pf.Lookup("log-format"))
	bindFlag("log_file", pf.Lookup("log-file"))

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// loadConfig reads and validates the configuration, then initializes
// logging from it. Clamped values are logged once logging is up.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		for _, e := range result.Fatals {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(result.Fatals))
	}

	if err := initLogging(cfg); err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		log.Warn("config validation", "error", w.Error())
	}
	return cfg, nil
}

var logFile io.Closer

func initLogging(cfg *config.Config) error {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		fw, err := logging.NewFileWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = fw
		out = io.MultiWriter(os.Stderr, fw)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	return nil
}

func closeLogging() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
