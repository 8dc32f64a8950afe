package capture

import (
	"fmt"

	"github.com/breeze-rmm/fbcgrab/internal/fbc"
	"github.com/breeze-rmm/fbcgrab/internal/hwdevice"
)

// destination is the path-specific half of a capture session. Exactly one
// implementation is chosen at Open.
type destination interface {
	kind() Destination
	// open creates the capture session and sets up frame delivery.
	open(d *Device, params fbc.SessionParams) error
	grab(d *Device, f *Frame) error
	destroySession(d *Device) error
	release()
}

type systemDestination struct {
	buf fbc.SysBuffer
}

func (*systemDestination) kind() Destination { return DestinationSystem }

func (s *systemDestination) open(d *Device, params fbc.SessionParams) error {
	params.CaptureType = fbc.CaptureToSys
	if err := d.createSession(params); err != nil {
		return err
	}

	buf, st := d.lib.ToSysSetUp(d.handle, d.bufFormat)
	if err := d.statusError("set up capture to system memory", st); err != nil {
		return fmt.Errorf("%w: %w", ErrSession, err)
	}
	s.buf = buf
	return nil
}

func (s *systemDestination) grab(d *Device, f *Frame) error {
	info, st := d.lib.ToSysGrabFrame(d.handle, fbc.GrabNoWait)
	if st != fbc.StatusSuccess {
		return d.grabError(st)
	}
	f.Info = info
	f.Data = s.buf.Bytes(info.ByteSize)
	return nil
}

func (s *systemDestination) destroySession(d *Device) error {
	return d.statusError("destroy capture session", d.lib.DestroyCaptureSession(d.handle))
}

func (s *systemDestination) release() {
	s.buf = nil
}

type deviceDestination struct {
	provider hwdevice.Provider
	selector string
	bridge   *hwdevice.Bridge
}

func (*deviceDestination) kind() Destination { return DestinationCUDA }

func (c *deviceDestination) open(d *Device, params fbc.SessionParams) error {
	dev, err := c.provider.CreateDeviceContext(c.selector)
	if err != nil {
		return fmt.Errorf("%w: create %s device context: %w", ErrExternal, c.provider.Type(), err)
	}
	frames, err := c.provider.AllocateFrameContext(dev, d.format, d.frameW, d.frameH)
	if err != nil {
		dev.Unref()
		return fmt.Errorf("%w: allocate %s frame context: %w", ErrExternal, c.provider.Type(), err)
	}
	c.bridge = hwdevice.NewBridge(dev, frames)
	frames.Unref()
	dev.Unref()

	params.CaptureType = fbc.CaptureToCUDA
	return c.bridge.Do(func() error {
		if err := d.createSession(params); err != nil {
			return err
		}
		st := d.lib.ToCudaSetUp(d.handle, d.bufFormat)
		if err := d.statusError("set up capture to cuda memory", st); err != nil {
			return fmt.Errorf("%w: %w", ErrSession, err)
		}
		return nil
	})
}

func (c *deviceDestination) grab(d *Device, f *Frame) error {
	var (
		ptr  fbc.DevicePtr
		info fbc.FrameInfo
		st   fbc.Status
	)
	if err := c.bridge.Bind(); err != nil {
		return fmt.Errorf("%w: bind device context: %w", ErrGrab, err)
	}
	ptr, info, st = d.lib.ToCudaGrabFrame(d.handle, fbc.GrabNoWait)
	if err := c.bridge.Unbind(); err != nil {
		d.log.Warn("unbind device context failed", "error", err.Error())
	}
	if st != fbc.StatusSuccess {
		return d.grabError(st)
	}

	frame, err := c.bridge.Frames().Wrap(uintptr(ptr))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGrab, err)
	}
	f.Info = info
	f.Device = frame
	return nil
}

func (c *deviceDestination) destroySession(d *Device) error {
	var st fbc.Status
	if err := c.bridge.Do(func() error {
		st = d.lib.DestroyCaptureSession(d.handle)
		return nil
	}); err != nil {
		return err
	}
	return d.statusError("destroy capture session", st)
}

func (c *deviceDestination) release() {
	if c.bridge != nil {
		c.bridge.Close()
		c.bridge = nil
	}
}
