// Package capture implements a screen capture input device on top of the
// NVIDIA frame buffer capture library. A Device owns one capture session
// and hands out frames at a fixed cadence.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/fbcgrab/internal/display"
	"github.com/breeze-rmm/fbcgrab/internal/fbc"
	"github.com/breeze-rmm/fbcgrab/internal/logging"
	"github.com/breeze-rmm/fbcgrab/internal/pacer"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

var log = logging.L("capture")

// paddingSize is the slack downstream consumers may read past a frame.
const paddingSize = 64

// Device is an open capture session. It must be driven from a single
// goroutine; only Metrics may be read concurrently.
type Device struct {
	opts      Options
	log       *slog.Logger
	sessionID string

	lib  fbc.Library
	disp display.Display

	screenW, screenH int
	target           target
	box              fbc.Box
	tracking         fbc.TrackingType
	outputID         uint32
	frameW, frameH   int
	format           pixfmt.Format
	bufFormat        fbc.BufferFormat
	bpp              int
	framerate        Rational
	frameDuration    time.Duration
	pacer            *pacer.Pacer

	handle         fbc.Handle
	handleCreated  bool
	sessionCreated bool
	dest           destination

	stream  StreamDescriptor
	metrics *Metrics
	closed  bool
}

// Open loads the capture library, resolves the capture region and sets up
// a capture session delivering frames to opts.Destination. On failure every
// resource acquired so far is released.
func Open(opts Options, deps Deps) (*Device, error) {
	deps = deps.withDefaults()

	d := &Device{
		opts:      opts,
		sessionID: uuid.NewString(),
		framerate: opts.Framerate,
		metrics:   NewMetrics(),
	}
	d.log = logging.WithSession(deps.Logger, d.sessionID)

	if err := d.open(deps); err != nil {
		d.log.Error("cannot open capture device", "error", err.Error())
		d.Close()
		return nil, err
	}

	d.log.Info("capture device opened",
		"display", d.disp.Name(),
		"box", d.box.String(),
		"frameSize", fmt.Sprintf("%dx%d", d.frameW, d.frameH),
		"format", d.stream.FormatName(),
		"framerate", d.framerate.String(),
		"destination", d.dest.kind().String())
	return d, nil
}

func (d *Device) open(deps Deps) error {
	if d.framerate == (Rational{}) {
		d.framerate = DefaultFramerate
	}
	if err := checkFramerate(d.framerate); err != nil {
		return err
	}
	d.frameDuration = d.framerate.FrameDuration()
	if d.opts.Width < 0 || d.opts.Height < 0 {
		return fmt.Errorf("%w: negative frame size %dx%d", ErrConfig, d.opts.Width, d.opts.Height)
	}

	switch d.opts.Destination {
	case DestinationSystem:
		d.dest = &systemDestination{}
	case DestinationCUDA:
		d.dest = &deviceDestination{provider: deps.HW, selector: d.opts.Device}
	default:
		return fmt.Errorf("%w: unknown destination %s", ErrConfig, d.opts.Destination)
	}

	lib, err := deps.Loader.Load(fbc.LibraryName, fbc.ClientVersion)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	d.lib = lib
	d.log.Debug("built for capture API version", "version", fbc.ClientVersion.String())

	caps := lib.Capabilities()
	switch d.dest.kind() {
	case DestinationSystem:
		if !caps.ToSys {
			return fmt.Errorf("%w: library lacks system memory capture", ErrLoad)
		}
	case DestinationCUDA:
		if !caps.ToCUDA {
			return fmt.Errorf("%w: library lacks cuda capture", ErrLoad)
		}
	}

	disp, err := deps.Display.OpenDisplay(d.opts.Display)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExternal, err)
	}
	d.disp = disp
	d.screenW, d.screenH, err = disp.ScreenSize()
	if err != nil {
		return fmt.Errorf("%w: query screen size: %w", ErrExternal, err)
	}

	d.target = parseTarget(d.opts.Target)
	d.tracking = fbc.TrackingScreen
	if d.target.mode != targetOutput {
		d.box = resolveRegion(d.target, d.screenW, d.screenH)
		if err := validateRegion(d.box, d.screenW, d.screenH); err != nil {
			return err
		}
	}

	d.format, d.bufFormat, d.bpp, err = lookupFormat(d.opts.PixelFormat)
	if err != nil {
		return err
	}
	if d.target.mode != targetOutput {
		if err := d.resolveFrameSize(); err != nil {
			return err
		}
	}

	if err := d.createHandle(); err != nil {
		return err
	}
	if err := d.queryStatus(); err != nil {
		return err
	}

	params := fbc.SessionParams{
		Tracking:                   d.tracking,
		OutputID:                   d.outputID,
		Box:                        d.box,
		FrameWidth:                 d.frameW,
		FrameHeight:                d.frameH,
		SamplingRate:               d.frameDuration.Round(time.Millisecond),
		WithCursor:                 d.opts.WithCursor,
		DisableAutoModesetRecovery: true,
		RoundFrameSize:             false,
		PushModel:                  false,
	}
	if d.tracking == fbc.TrackingOutput {
		// The box is relative to the tracked output.
		params.Box = fbc.Box{W: d.box.W, H: d.box.H}
	}
	if err := d.dest.open(d, params); err != nil {
		return err
	}

	d.stream = d.buildStream()
	d.pacer = pacer.New(d.frameDuration, deps.Clock)
	return nil
}

// resolveFrameSize defaults the output frame size to the box and rejects
// frames too large for the library's 32-bit buffer sizes.
func (d *Device) resolveFrameSize() error {
	d.frameW, d.frameH = d.opts.Width, d.opts.Height
	if d.frameW == 0 {
		d.frameW = d.box.W
	}
	if d.frameH == 0 {
		d.frameH = d.box.H
	}
	bits := int64(d.frameW) * int64(d.frameH) * int64(d.bpp)
	if bits/8+paddingSize > math.MaxInt32 {
		return fmt.Errorf("%w: capture area %dx%d is too large", ErrConfig, d.frameW, d.frameH)
	}
	return nil
}

func (d *Device) createHandle() error {
	h, st := d.lib.CreateHandle()
	if err := fbc.Translate("create handle", st, ""); err != nil {
		return fmt.Errorf("%w: %w", ErrSession, err)
	}
	d.handle = h
	d.handleCreated = true
	return nil
}

func (d *Device) queryStatus() error {
	info, st := d.lib.GetStatus(d.handle)
	if err := d.statusError("get status", st); err != nil {
		return fmt.Errorf("%w: %w", ErrSession, err)
	}

	d.log.Debug("capture status",
		"capturePossible", info.CapturePossible,
		"currentlyCapturing", info.CurrentlyCapturing,
		"canCreateNow", info.CanCreateNow,
		"screenSize", fmt.Sprintf("%dx%d", info.ScreenWidth, info.ScreenHeight),
		"xrandr", info.XRandRAvailable,
		"outputs", len(info.Outputs),
		"libraryVersion", info.LibraryVersion.String())

	if !info.CanCreateNow {
		return fmt.Errorf("%w: cannot create a capture session on this system", ErrExternal)
	}

	if d.target.mode != targetOutput {
		return nil
	}

	out, ok := findOutput(info.Outputs, d.target.output)
	if !ok {
		return fmt.Errorf("%w: %q", ErrOutputNotFound, d.target.output)
	}
	d.log.Debug("tracking output", "output", out.Name, "id", out.ID, "box", out.Box.String())
	d.box = out.Box
	d.outputID = out.ID
	d.tracking = fbc.TrackingOutput
	if err := validateRegion(d.box, d.screenW, d.screenH); err != nil {
		return err
	}
	return d.resolveFrameSize()
}

func findOutput(outputs []fbc.Output, name string) (fbc.Output, bool) {
	for _, o := range outputs {
		if o.Name == name {
			return o, true
		}
	}
	return fbc.Output{}, false
}

// createSession is called by the destination with the capture type set.
func (d *Device) createSession(params fbc.SessionParams) error {
	st := d.lib.CreateCaptureSession(d.handle, params)
	if err := d.statusError("create capture session", st); err != nil {
		return fmt.Errorf("%w: %w", ErrSession, err)
	}
	d.sessionCreated = true
	return nil
}

func (d *Device) buildStream() StreamDescriptor {
	s := StreamDescriptor{
		Width:         d.frameW,
		Height:        d.frameH,
		PixelFormat:   d.format,
		Framerate:     d.framerate,
		TimeBase:      TimeBaseMicroseconds,
		FrameDuration: d.frameDuration.Microseconds(),
	}
	if d.dest.kind() == DestinationCUDA {
		s.HWType = "cuda"
	}
	bits := int64(d.frameW) * int64(d.frameH) * int64(d.bpp)
	s.BitRate = bits * int64(d.framerate.Num) / int64(d.framerate.Den)
	return s
}

// statusError translates st, attaching the library's last error string.
func (d *Device) statusError(op string, st fbc.Status) error {
	if st == fbc.StatusSuccess {
		return nil
	}
	detail := d.lib.LastError(d.handle)
	d.log.Debug("library call failed", logging.KeyOp, op, logging.KeyStatus, int32(st), logging.KeyError, detail)
	return fbc.Translate(op, st, detail)
}

func (d *Device) grabError(st fbc.Status) error {
	err := d.statusError("grab frame", st)
	if st == fbc.StatusMustRecreate {
		return fmt.Errorf("%w: %w", ErrMustRecreate, err)
	}
	return fmt.Errorf("%w: %w", ErrGrab, err)
}

// Stream returns the descriptor of the produced stream.
func (d *Device) Stream() StreamDescriptor { return d.stream }

// Metrics returns the device's grab counters.
func (d *Device) Metrics() *Metrics { return d.metrics }

// SessionID is the correlation id attached to this device's log lines.
func (d *Device) SessionID() string { return d.sessionID }

// Region is the resolved capture box in screen coordinates.
func (d *Device) Region() fbc.Box { return d.box }

// PullFrame waits for the next frame deadline and grabs the latest frame.
// Grab failures leave the session open; ErrMustRecreate means the display
// mode changed and the device has to be closed and opened again.
func (d *Device) PullFrame() (*Frame, error) {
	if d.closed {
		return nil, ErrClosed
	}

	now := d.pacer.Wait()
	start := time.Now()

	f := &Frame{
		PTS:      now.Microseconds(),
		Duration: d.frameDuration.Microseconds(),
	}
	if err := d.dest.grab(d, f); err != nil {
		d.metrics.RecordError(errors.Is(err, ErrMustRecreate))
		d.log.Error("cannot grab frame", "error", err.Error())
		return nil, err
	}

	d.metrics.RecordGrab(time.Since(start), f.Info, d.pacer.Lateness())
	return f, nil
}

// Close tears the session down in reverse order of creation. It is safe to
// call more than once. Library teardown failures are logged, not returned.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true

	if d.sessionCreated {
		if err := d.dest.destroySession(d); err != nil {
			d.log.Warn("cannot destroy capture session", "error", err.Error())
		}
		d.sessionCreated = false
	}

	if d.handleCreated {
		// The handle is gone, so there is no last error string to fetch.
		if err := fbc.Translate("destroy handle", d.lib.DestroyHandle(d.handle), ""); err != nil {
			d.log.Warn("cannot destroy handle", "error", err.Error())
		}
		d.handleCreated = false
	}

	if d.dest != nil {
		d.dest.release()
	}

	if d.disp != nil {
		if err := d.disp.Close(); err != nil {
			d.log.Warn("cannot close display", "error", err.Error())
		}
		d.disp = nil
	}

	if d.lib != nil {
		if err := d.lib.Unload(); err != nil {
			d.log.Warn("cannot unload capture library", "error", err.Error())
		}
		d.lib = nil
	}
}
