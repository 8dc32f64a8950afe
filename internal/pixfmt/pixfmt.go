// Package pixfmt names the pixel formats a capture session can deliver and
// computes their memory layout.
package pixfmt

import (
	"fmt"
	"strings"
)

// Format is a raw video pixel format.
type Format int

const (
	None Format = iota
	BGRA
	ARGB
	RGBA
	RGB24
	NV12
	YUV444P
	YUV420P
)

var names = [...]string{
	None:    "none",
	BGRA:    "bgra",
	ARGB:    "argb",
	RGBA:    "rgba",
	RGB24:   "rgb24",
	NV12:    "nv12",
	YUV444P: "yuv444p",
	YUV420P: "yuv420p",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(names) {
		return fmt.Sprintf("pixfmt(%d)", int(f))
	}
	return names[f]
}

// Parse resolves a format name. The empty string yields None.
func Parse(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}
	for i, name := range names {
		if name == s {
			return Format(i), nil
		}
	}
	return None, fmt.Errorf("unknown pixel format %q", s)
}

// Plane describes one plane of an image relative to its base address.
type Plane struct {
	Offset   int
	Linesize int
	Rows     int
}

// Layout returns the plane layout of a w×h image with every linesize
// aligned up to align bytes, and the total byte size.
//
// YUV420P buffers are stored with the V plane before the U plane and
// chroma linesizes of half the luma linesize: the chroma offsets are
// swapped after the generic computation and the V plane begins
// linesize[2]*(h/2) bytes after the U plane, so odd heights differ from
// the packed planar layout.
func Layout(f Format, w, h, align int) ([]Plane, int, error) {
	if w <= 0 || h <= 0 {
		return nil, 0, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	if align <= 0 {
		align = 1
	}

	cw, ch := (w+1)/2, (h+1)/2

	var lines [][2]int // bytes per line, rows
	switch f {
	case BGRA, ARGB, RGBA:
		lines = [][2]int{{4 * w, h}}
	case RGB24:
		lines = [][2]int{{3 * w, h}}
	case NV12:
		lines = [][2]int{{w, h}, {2 * cw, ch}}
	case YUV444P:
		lines = [][2]int{{w, h}, {w, h}, {w, h}}
	case YUV420P:
		lines = [][2]int{{w, h}, {cw, ch}, {cw, ch}}
	default:
		return nil, 0, fmt.Errorf("no layout for pixel format %s", f)
	}

	planes := make([]Plane, len(lines))
	offset := 0
	for i, l := range lines {
		planes[i] = Plane{Offset: offset, Linesize: alignUp(l[0], align), Rows: l[1]}
		offset += planes[i].Linesize * planes[i].Rows
	}

	if f == YUV420P {
		planes[1].Linesize = planes[0].Linesize / 2
		planes[2].Linesize = planes[0].Linesize / 2
		planes[2].Offset = planes[1].Offset
		planes[1].Offset = planes[2].Offset + planes[2].Linesize*(h/2)
	}

	return planes, offset, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
