package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/fbcgrab/internal/capture"
	"github.com/breeze-rmm/fbcgrab/internal/config"
	"github.com/breeze-rmm/fbcgrab/internal/health"
)

// grabFailureThreshold is the number of consecutive grab failures after
// which the capture command gives up.
const grabFailureThreshold = 25

var (
	captureFrames int
	captureOutput string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture frames",
	Long: `Capture frames at a fixed rate. Raw frames are written to --output
("-" for stdout) on the system memory path; on the cuda path frames stay in
device memory and are only counted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer closeLogging()
		return runCapture(cmd.Context(), cfg)
	},
}

func init() {
	f := captureCmd.Flags()
	f.String("target", "", `capture target: "WxH+X+Y", "+X+Y", an output name, or empty for the whole screen`)
	f.Int("width", 0, "output frame width (default: capture box width)")
	f.Int("height", 0, "output frame height (default: capture box height)")
	f.String("pixel-format", "", "pixel format (bgra, argb, rgba, rgb24, nv12, yuv444p)")
	f.String("framerate", "", "frame rate: N, N/D, decimal, or ntsc, pal, film, ...")
	f.String("destination", "", "frame destination: system or cuda")
	f.String("device", "", "cuda device ordinal")
	f.Bool("with-cursor", true, "composite the mouse cursor")
	f.Int("stats-interval", 0, "seconds between metric log lines, 0 disables")
	f.IntVar(&captureFrames, "frames", 0, "stop after this many frames (0 = until interrupted)")
	f.StringVarP(&captureOutput, "output", "o", "", `write raw frames to this file, "-" for stdout`)

	bindFlag("target", f.Lookup("target"))
	bindFlag("width", f.Lookup("width"))
	bindFlag("height", f.Lookup("height"))
	bindFlag("pixel_format", f.Lookup("pixel-format"))
	bindFlag("framerate", f.Lookup("framerate"))
	bindFlag("destination", f.Lookup("destination"))
	bindFlag("device", f.Lookup("device"))
	bindFlag("with_cursor", f.Lookup("with-cursor"))
	bindFlag("stats_interval_seconds", f.Lookup("stats-interval"))
}

func runCapture(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.CaptureOptions()
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(captureOutput)
	if err != nil {
		return err
	}
	defer closeOut()

	mon := health.NewMonitor(grabFailureThreshold)
	defer reportHealth(mon)

	dev, err := capture.Open(opts, capture.DefaultDeps())
	if err != nil {
		if errors.Is(err, capture.ErrLoad) {
			mon.Update(health.ComponentLibrary, health.Unhealthy, err.Error())
		} else {
			mon.Update(health.ComponentSession, health.Unhealthy, err.Error())
		}
		return err
	}
	defer dev.Close()
	mon.Update(health.ComponentLibrary, health.Healthy, "")
	mon.Update(health.ComponentSession, health.Healthy, "")

	stream := dev.Stream()
	log.Info("capturing",
		"session", dev.SessionID(),
		"size", fmt.Sprintf("%dx%d", stream.Width, stream.Height),
		"format", stream.FormatName(),
		"framerate", stream.Framerate.String(),
		"bitrate", stream.BitRate)

	var statsEvery time.Duration
	if cfg.StatsIntervalSeconds > 0 {
		statsEvery = time.Duration(cfg.StatsIntervalSeconds) * time.Second
	}
	lastStats := time.Now()

	for n := 0; captureFrames == 0 || n < captureFrames; {
		if ctx.Err() != nil {
			log.Info("capture interrupted")
			break
		}

		frame, err := dev.PullFrame()
		mustRecreate := errors.Is(err, capture.ErrMustRecreate)
		mon.RecordGrab(err, mustRecreate)
		if err != nil {
			if mustRecreate || mon.Overall() == health.Unhealthy {
				return err
			}
			continue
		}

		if out != nil && frame.Data != nil {
			if _, err := out.Write(frame.Data); err != nil {
				frame.Release()
				return fmt.Errorf("write frame: %w", err)
			}
		}
		frame.Release()
		n++

		if statsEvery > 0 && time.Since(lastStats) >= statsEvery {
			lastStats = time.Now()
			log.Info("capture stats", dev.Metrics().Snapshot().LogAttrs()...)
		}
	}

	s := dev.Metrics().Snapshot()
	log.Info("capture finished", s.LogAttrs()...)
	return nil
}

// reportHealth logs the overall component health and the reason for every
// component that is not healthy.
func reportHealth(mon *health.Monitor) {
	summary := mon.Summary()
	log.Info("capture health", "status", summary["status"], "components", summary["components"])
	for _, c := range mon.All() {
		if c.Status == health.Healthy {
			continue
		}
		log.Warn("component not healthy",
			"component", c.Name,
			"status", string(c.Status),
			"message", c.Message,
			"since", c.UpdatedAt)
	}
}

// openOutput returns a buffered writer for path, nil when frames are
// discarded, and a function that flushes and closes it.
func openOutput(path string) (*bufio.Writer, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}

	var f io.WriteCloser = os.Stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open output: %w", err)
		}
		f = file
	}

	w := bufio.NewWriterSize(f, 1<<20)
	return w, func() {
		if err := w.Flush(); err != nil {
			log.Warn("flush output failed", "error", err.Error())
		}
		if path != "-" {
			f.Close()
		}
	}, nil
}
