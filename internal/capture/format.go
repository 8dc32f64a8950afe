package capture

import (
	"fmt"

	"github.com/breeze-rmm/fbcgrab/internal/fbc"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

// DefaultPixelFormat is the library's native format.
const DefaultPixelFormat = pixfmt.BGRA

// formatTable lists the pixel formats the library can deliver.
var formatTable = [...]struct {
	format pixfmt.Format
	buffer fbc.BufferFormat
	bpp    int
}{
	{pixfmt.ARGB, fbc.BufferARGB, 32},
	{pixfmt.RGB24, fbc.BufferRGB, 24},
	{pixfmt.NV12, fbc.BufferNV12, 12},
	{pixfmt.YUV444P, fbc.BufferYUV444P, 24},
	{pixfmt.RGBA, fbc.BufferRGBA, 32},
	{pixfmt.BGRA, fbc.BufferBGRA, 32},
}

// lookupFormat maps a pixel format to the library buffer format and its
// storage cost. None selects the native format.
func lookupFormat(f pixfmt.Format) (pixfmt.Format, fbc.BufferFormat, int, error) {
	if f == pixfmt.None {
		f = DefaultPixelFormat
	}
	for _, e := range formatTable {
		if e.format == f {
			return e.format, e.buffer, e.bpp, nil
		}
	}
	return f, 0, 0, fmt.Errorf("%w: unsupported pixel format %s", ErrConfig, f)
}

// SupportedFormats lists the pixel formats accepted by Open.
func SupportedFormats() []pixfmt.Format {
	out := make([]pixfmt.Format, len(formatTable))
	for i, e := range formatTable {
		out[i] = e.format
	}
	return out
}
