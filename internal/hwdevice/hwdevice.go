// Package hwdevice manages GPU device contexts and the frame pools that
// wrap device memory handed out by the capture library.
package hwdevice

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/fbcgrab/internal/logging"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

var log = logging.L("hwdevice")

var (
	ErrDeviceUnavailable = errors.New("hardware device unavailable")
	ErrReleased          = errors.New("hardware context already released")
)

// Context is a backend device context that can be made current on the
// calling OS thread.
type Context interface {
	Push() error
	Pop() error
	Destroy() error
}

// Provider creates device contexts and frame contexts for one device API.
type Provider interface {
	// Type names the device API, e.g. "cuda".
	Type() string
	CreateDeviceContext(selector string) (*DeviceContext, error)
	AllocateFrameContext(dev *DeviceContext, sw pixfmt.Format, width, height int) (*FrameContext, error)
}

// DeviceContext is a reference-counted handle to a backend context. The
// backend context is destroyed when the last reference is released.
type DeviceContext struct {
	Type     string
	Selector string

	ctx  Context
	refs atomic.Int32
	once sync.Once
}

// NewDeviceContext wraps ctx with a single reference owned by the caller.
func NewDeviceContext(typ, selector string, ctx Context) *DeviceContext {
	d := &DeviceContext{Type: typ, Selector: selector, ctx: ctx}
	d.refs.Store(1)
	return d
}

// Ref adds a reference and returns d.
func (d *DeviceContext) Ref() *DeviceContext {
	d.refs.Add(1)
	return d
}

// Unref drops a reference.
func (d *DeviceContext) Unref() {
	if d.refs.Add(-1) != 0 {
		return
	}
	d.once.Do(func() {
		if err := d.ctx.Destroy(); err != nil {
			log.Warn("destroy device context failed", "type", d.Type, "selector", d.Selector, "error", err.Error())
			return
		}
		log.Debug("device context destroyed", "type", d.Type, "selector", d.Selector)
	})
}

func (d *DeviceContext) push() error {
	if d.refs.Load() <= 0 {
		return ErrReleased
	}
	return d.ctx.Push()
}

func (d *DeviceContext) pop() error {
	return d.ctx.Pop()
}

// FrameContext describes a pool of device frames sharing one software
// format and size. It holds a reference on its device context.
type FrameContext struct {
	Device   *DeviceContext
	SWFormat pixfmt.Format
	Width    int
	Height   int
	// Align is the linesize alignment of wrapped buffers.
	Align int

	planes []pixfmt.Plane
	refs   atomic.Int32
	once   sync.Once
}

// NewFrameContext computes the plane layout for the given format and
// takes a reference on dev.
func NewFrameContext(dev *DeviceContext, sw pixfmt.Format, width, height, align int) (*FrameContext, error) {
	planes, _, err := pixfmt.Layout(sw, width, height, align)
	if err != nil {
		return nil, err
	}
	fc := &FrameContext{
		Device:   dev.Ref(),
		SWFormat: sw,
		Width:    width,
		Height:   height,
		Align:    align,
		planes:   planes,
	}
	fc.refs.Store(1)
	return fc, nil
}

func (fc *FrameContext) Ref() *FrameContext {
	fc.refs.Add(1)
	return fc
}

func (fc *FrameContext) Unref() {
	if fc.refs.Add(-1) != 0 {
		return
	}
	fc.once.Do(fc.Device.Unref)
}

func (fc *FrameContext) refCount() int { return int(fc.refs.Load()) }

// Wrap builds a frame around device memory at ptr. The frame holds a
// reference on fc until released.
func (fc *FrameContext) Wrap(ptr uintptr) (*Frame, error) {
	if fc.refs.Load() <= 0 {
		return nil, ErrReleased
	}
	if ptr == 0 {
		return nil, fmt.Errorf("wrap device frame: nil device pointer")
	}

	f := &Frame{
		Ptr:      ptr,
		Width:    fc.Width,
		Height:   fc.Height,
		SWFormat: fc.SWFormat,
		Planes:   make([]uintptr, len(fc.planes)),
		Linesize: make([]int, len(fc.planes)),
		ctx:      fc.Ref(),
	}
	for i, p := range fc.planes {
		f.Planes[i] = ptr + uintptr(p.Offset)
		f.Linesize[i] = p.Linesize
	}
	return f, nil
}

// Frame is one device-resident frame.
type Frame struct {
	Ptr      uintptr
	Width    int
	Height   int
	SWFormat pixfmt.Format
	Planes   []uintptr
	Linesize []int

	ctx      *FrameContext
	released atomic.Bool
}

// Release drops the frame's reference on its context. Safe to call twice.
func (f *Frame) Release() {
	if f.released.Swap(true) {
		return
	}
	f.ctx.Unref()
}
