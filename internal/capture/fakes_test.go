package capture

import (
	"strings"
	"time"

	"github.com/breeze-rmm/fbcgrab/internal/display"
	"github.com/breeze-rmm/fbcgrab/internal/fbc"
	"github.com/breeze-rmm/fbcgrab/internal/hwdevice"
	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

// recorder collects the calls made against every fake in order.
type recorder struct {
	events []string
}

func (r *recorder) add(e string) { r.events = append(r.events, e) }

func (r *recorder) String() string { return strings.Join(r.events, ", ") }

func (r *recorder) has(e string) bool {
	for _, got := range r.events {
		if got == e {
			return true
		}
	}
	return false
}

func (r *recorder) reset() { r.events = nil }

type fakeBuffer struct {
	data []byte
}

func (b *fakeBuffer) Bytes(n int) []byte { return b.data[:n] }

type fakeLib struct {
	rec  *recorder
	caps fbc.Capabilities
	info fbc.StatusInfo

	createHandleSt   fbc.Status
	getStatusSt      fbc.Status
	createSessionSt  fbc.Status
	setupSt          fbc.Status
	grabSt           fbc.Status
	destroySessionSt fbc.Status
	destroyHandleSt  fbc.Status

	params fbc.SessionParams
	format fbc.BufferFormat
	buf    *fakeBuffer
	frame  uint32
	onGrab func()

	handleDestroyed bool
	staleLastError  int
}

func newFakeLib(rec *recorder) *fakeLib {
	return &fakeLib{
		rec:  rec,
		caps: fbc.Capabilities{ToSys: true, ToCUDA: true},
		info: fbc.StatusInfo{
			CapturePossible: true,
			CanCreateNow:    true,
			ScreenWidth:     1920,
			ScreenHeight:    1080,
			XRandRAvailable: true,
			LibraryVersion:  fbc.Version{Major: 1, Minor: 8},
			Outputs: []fbc.Output{
				{ID: 7, Name: "DP-0", Box: fbc.Box{X: 0, Y: 0, W: 1280, H: 1080}},
				{ID: 8, Name: "HDMI-0", Box: fbc.Box{X: 1280, Y: 0, W: 640, H: 480}},
			},
		},
		buf: &fakeBuffer{data: make([]byte, 1920*1080*4)},
	}
}

func (l *fakeLib) Version() fbc.Version           { return fbc.ClientVersion }
func (l *fakeLib) Capabilities() fbc.Capabilities { return l.caps }

func (l *fakeLib) LastError(fbc.Handle) string {
	if l.handleDestroyed {
		l.staleLastError++
	}
	return "fake failure"
}

func (l *fakeLib) CreateHandle() (fbc.Handle, fbc.Status) {
	l.rec.add("create handle")
	return 42, l.createHandleSt
}

func (l *fakeLib) DestroyHandle(fbc.Handle) fbc.Status {
	l.rec.add("destroy handle")
	l.handleDestroyed = true
	return l.destroyHandleSt
}

func (l *fakeLib) GetStatus(fbc.Handle) (fbc.StatusInfo, fbc.Status) {
	l.rec.add("get status")
	if l.getStatusSt != fbc.StatusSuccess {
		return fbc.StatusInfo{}, l.getStatusSt
	}
	return l.info, fbc.StatusSuccess
}

func (l *fakeLib) CreateCaptureSession(_ fbc.Handle, p fbc.SessionParams) fbc.Status {
	l.rec.add("create session")
	l.params = p
	return l.createSessionSt
}

func (l *fakeLib) DestroyCaptureSession(fbc.Handle) fbc.Status {
	l.rec.add("destroy session")
	return l.destroySessionSt
}

func (l *fakeLib) ToSysSetUp(_ fbc.Handle, f fbc.BufferFormat) (fbc.SysBuffer, fbc.Status) {
	l.rec.add("tosys setup")
	l.format = f
	if l.setupSt != fbc.StatusSuccess {
		return nil, l.setupSt
	}
	return l.buf, fbc.StatusSuccess
}

func (l *fakeLib) ToSysGrabFrame(fbc.Handle, fbc.GrabFlags) (fbc.FrameInfo, fbc.Status) {
	l.rec.add("grab")
	if l.onGrab != nil {
		l.onGrab()
	}
	if l.grabSt != fbc.StatusSuccess {
		return fbc.FrameInfo{}, l.grabSt
	}
	l.frame++
	w, h := l.params.FrameWidth, l.params.FrameHeight
	return fbc.FrameInfo{
		Width:        w,
		Height:       h,
		ByteSize:     w * h * 4,
		CurrentFrame: l.frame,
		IsNewFrame:   true,
	}, fbc.StatusSuccess
}

func (l *fakeLib) ToCudaSetUp(_ fbc.Handle, f fbc.BufferFormat) fbc.Status {
	l.rec.add("tocuda setup")
	l.format = f
	return l.setupSt
}

func (l *fakeLib) ToCudaGrabFrame(fbc.Handle, fbc.GrabFlags) (fbc.DevicePtr, fbc.FrameInfo, fbc.Status) {
	l.rec.add("grab")
	if l.grabSt != fbc.StatusSuccess {
		return 0, fbc.FrameInfo{}, l.grabSt
	}
	l.frame++
	return 0x10000, fbc.FrameInfo{CurrentFrame: l.frame, IsNewFrame: true}, fbc.StatusSuccess
}

func (l *fakeLib) Unload() error {
	l.rec.add("unload")
	return nil
}

type fakeLoader struct {
	rec *recorder
	lib *fakeLib
	err error
}

func (f *fakeLoader) Load(name string, v fbc.Version) (fbc.Library, error) {
	f.rec.add("load")
	if f.err != nil {
		return nil, f.err
	}
	return f.lib, nil
}

type fakeDisplay struct {
	rec  *recorder
	w, h int
	err  error
}

func (d *fakeDisplay) OpenDisplay(string) (display.Display, error) {
	d.rec.add("display open")
	if d.err != nil {
		return nil, d.err
	}
	return d, nil
}

func (d *fakeDisplay) Name() string                  { return ":0" }
func (d *fakeDisplay) ScreenSize() (int, int, error) { return d.w, d.h, nil }
func (d *fakeDisplay) Close() error                  { d.rec.add("display close"); return nil }

type fakeHWContext struct {
	rec *recorder
}

func (c *fakeHWContext) Push() error    { c.rec.add("push"); return nil }
func (c *fakeHWContext) Pop() error     { c.rec.add("pop"); return nil }
func (c *fakeHWContext) Destroy() error { c.rec.add("device destroy"); return nil }

type fakeProvider struct {
	rec *recorder
}

func (p *fakeProvider) Type() string { return "cuda" }

func (p *fakeProvider) CreateDeviceContext(selector string) (*hwdevice.DeviceContext, error) {
	p.rec.add("device create")
	return hwdevice.NewDeviceContext("cuda", selector, &fakeHWContext{rec: p.rec}), nil
}

func (p *fakeProvider) AllocateFrameContext(dev *hwdevice.DeviceContext, f pixfmt.Format, w, h int) (*hwdevice.FrameContext, error) {
	return hwdevice.NewFrameContext(dev, f, w, h, 1)
}

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration    { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now += d }

type fixture struct {
	rec   *recorder
	lib   *fakeLib
	deps  Deps
	clock *fakeClock
}

func newFixture() *fixture {
	rec := &recorder{}
	lib := newFakeLib(rec)
	clock := &fakeClock{now: time.Second}
	return &fixture{
		rec:   rec,
		lib:   lib,
		clock: clock,
		deps: Deps{
			Loader:  &fakeLoader{rec: rec, lib: lib},
			Display: &fakeDisplay{rec: rec, w: 1920, h: 1080},
			HW:      &fakeProvider{rec: rec},
			Clock:   clock,
		},
	}
}
