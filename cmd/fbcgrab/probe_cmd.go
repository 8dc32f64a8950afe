package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/fbcgrab/internal/capture"
)

var probeFormat string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report capture library status and outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLogging()

		opts, err := cfg.CaptureOptions()
		if err != nil {
			return err
		}

		report := probeReport{Host: hostReport()}
		report.Capture, err = capture.Probe(opts, capture.DefaultDeps())
		if err != nil {
			return err
		}
		return writeReport(cmd.OutOrStdout(), probeFormat, report)
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeFormat, "format", "yaml", "output format (yaml or json)")
}

type hostInfo struct {
	Hostname        string `yaml:"hostname" json:"hostname"`
	OS              string `yaml:"os" json:"os"`
	Platform        string `yaml:"platform" json:"platform"`
	PlatformVersion string `yaml:"platformVersion" json:"platformVersion"`
	KernelVersion   string `yaml:"kernelVersion" json:"kernelVersion"`
	KernelArch      string `yaml:"kernelArch" json:"kernelArch"`
}

type probeReport struct {
	Host    *hostInfo            `yaml:"host,omitempty" json:"host,omitempty"`
	Capture *capture.ProbeReport `yaml:"capture" json:"capture"`
}

func hostReport() *hostInfo {
	info, err := host.Info()
	if err != nil {
		log.Warn("failed to read host info", "error", err.Error())
		return nil
	}
	return &hostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
	}
}

func writeReport(w io.Writer, format string, report probeReport) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return fmt.Errorf("unknown format %q (use yaml or json)", format)
	}
}
