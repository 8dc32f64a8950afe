package hwdevice

import (
	"errors"
	"runtime"
)

var (
	ErrAlreadyBound = errors.New("device context already bound")
	ErrNotBound     = errors.New("device context not bound")
)

// Bridge makes a device context current around calls that touch device
// memory. Backend contexts are per OS thread, so Bind locks the calling
// goroutine to its thread until Unbind. A Bridge is not reentrant and must
// be driven from a single goroutine.
type Bridge struct {
	dev    *DeviceContext
	frames *FrameContext
	bound  bool
	closed bool
}

// NewBridge takes its own references on dev and frames.
func NewBridge(dev *DeviceContext, frames *FrameContext) *Bridge {
	return &Bridge{dev: dev.Ref(), frames: frames.Ref()}
}

func (b *Bridge) Frames() *FrameContext { return b.frames }

// Bind pushes the device context on the current OS thread.
func (b *Bridge) Bind() error {
	if b.closed {
		return ErrReleased
	}
	if b.bound {
		return ErrAlreadyBound
	}
	runtime.LockOSThread()
	if err := b.dev.push(); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	b.bound = true
	return nil
}

// Unbind pops the device context and releases the thread.
func (b *Bridge) Unbind() error {
	if !b.bound {
		return ErrNotBound
	}
	err := b.dev.pop()
	b.bound = false
	runtime.UnlockOSThread()
	return err
}

// Do runs fn with the context bound. Unbind runs even when fn fails; fn's
// error takes precedence.
func (b *Bridge) Do(fn func() error) error {
	if err := b.Bind(); err != nil {
		return err
	}
	err := fn()
	if uerr := b.Unbind(); err == nil {
		err = uerr
	}
	return err
}

// Close drops the bridge's references. Frames already handed out keep the
// device context alive until they are released.
func (b *Bridge) Close() {
	if b.closed {
		return
	}
	if b.bound {
		if err := b.Unbind(); err != nil {
			log.Warn("unbind on close failed", "error", err.Error())
		}
	}
	b.closed = true
	b.frames.Unref()
	b.dev.Unref()
}
