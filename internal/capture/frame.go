package capture

import (
	"fmt"

	"github.com/breeze-rmm/fbcgrab/internal/fbc"
	"github.com/breeze-rmm/fbcgrab/internal/hwdevice"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

// StreamDescriptor describes the video stream a device produces.
type StreamDescriptor struct {
	Width  int
	Height int
	// PixelFormat is the layout of frame data. On the CUDA path it is the
	// software format of the device frames.
	PixelFormat pixfmt.Format
	// HWType is "cuda" when frames live in device memory, empty otherwise.
	HWType        string
	Framerate     Rational
	TimeBase      Rational
	FrameDuration int64
	// BitRate is the raw bit rate in bits per second.
	BitRate int64
}

// FormatName is the pixel format as a pipeline would name it, e.g. "bgra"
// or "cuda(nv12)".
func (s StreamDescriptor) FormatName() string {
	if s.HWType != "" {
		return fmt.Sprintf("%s(%s)", s.HWType, s.PixelFormat)
	}
	return s.PixelFormat.String()
}

// Frame is one captured frame. PTS and Duration are in microseconds.
type Frame struct {
	PTS      int64
	Duration int64
	Info     fbc.FrameInfo

	// Data aliases the library's host buffer on the system path. It is
	// read-only and valid until the next PullFrame.
	Data []byte

	// Device is set on the CUDA path. The caller must Release the frame.
	Device *hwdevice.Frame
}

// Release returns device memory references held by the frame.
func (f *Frame) Release() {
	if f.Device != nil {
		f.Device.Release()
	}
}
