package capture

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/breeze-rmm/fbcgrab/internal/display"
	"github.com/breeze-rmm/fbcgrab/internal/fbc"
	"github.com/breeze-rmm/fbcgrab/internal/hwdevice"
	"github.com/breeze-rmm/fbcgrab/internal/pacer"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

// Destination selects the memory domain frames are delivered to.
type Destination int

const (
	// DestinationSystem delivers frames in a library-owned host buffer.
	DestinationSystem Destination = iota
	// DestinationCUDA delivers frames in CUDA device memory.
	DestinationCUDA
)

func (d Destination) String() string {
	switch d {
	case DestinationSystem:
		return "system"
	case DestinationCUDA:
		return "cuda"
	default:
		return fmt.Sprintf("destination(%d)", int(d))
	}
}

// ParseDestination accepts "system" (or empty) and "cuda".
func ParseDestination(s string) (Destination, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "system", "sys":
		return DestinationSystem, nil
	case "cuda":
		return DestinationCUDA, nil
	}
	return 0, fmt.Errorf("%w: unknown destination %q", ErrConfig, s)
}

// Options configure a capture device.
type Options struct {
	// Display is the X display name. Empty uses $DISPLAY.
	Display string
	// Target is "WxH+X+Y", "+X+Y", an output name, or empty for the whole
	// screen.
	Target string
	// Width and Height set the output frame size. Zero takes the size of
	// the capture box.
	Width  int
	Height int
	// PixelFormat defaults to BGRA when None.
	PixelFormat pixfmt.Format
	Framerate   Rational
	Destination Destination
	// Device selects the CUDA device ordinal. Empty selects device 0.
	Device     string
	WithCursor bool
}

// DefaultOptions returns whole-screen BGRA capture at 25 fps with the
// cursor composited.
func DefaultOptions() Options {
	return Options{
		PixelFormat: DefaultPixelFormat,
		Framerate:   DefaultFramerate,
		Destination: DestinationSystem,
		WithCursor:  true,
	}
}

// Deps are the collaborators a device is built from.
type Deps struct {
	Loader  fbc.Loader
	Display display.Opener
	HW      hwdevice.Provider
	Clock   pacer.Clock
	Logger  *slog.Logger
}

// DefaultDeps wires the system library loader, X11, CUDA and the
// monotonic clock.
func DefaultDeps() Deps {
	return Deps{
		Loader:  fbc.NewLoader(),
		Display: display.X11{},
		HW:      hwdevice.NewCUDA(),
		Clock:   pacer.SystemClock(),
	}
}

func (d Deps) withDefaults() Deps {
	def := DefaultDeps()
	if d.Loader == nil {
		d.Loader = def.Loader
	}
	if d.Display == nil {
		d.Display = def.Display
	}
	if d.HW == nil {
		d.HW = def.HW
	}
	if d.Clock == nil {
		d.Clock = def.Clock
	}
	if d.Logger == nil {
		d.Logger = log
	}
	return d
}
