package hwdevice

import (
	"errors"
	"strings"
	"testing"

	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

type fakeContext struct {
	calls     []string
	depth     int
	pushErr   error
	destroyed int
}

func (c *fakeContext) Push() error {
	c.calls = append(c.calls, "push")
	if c.pushErr != nil {
		return c.pushErr
	}
	c.depth++
	return nil
}

func (c *fakeContext) Pop() error {
	c.calls = append(c.calls, "pop")
	c.depth--
	return nil
}

func (c *fakeContext) Destroy() error {
	c.calls = append(c.calls, "destroy")
	c.destroyed++
	return nil
}

func newFixture(t *testing.T) (*fakeContext, *DeviceContext, *FrameContext) {
	t.Helper()
	ctx := &fakeContext{}
	dev := NewDeviceContext("cuda", "0", ctx)
	fc, err := NewFrameContext(dev, pixfmt.NV12, 4, 2, 1)
	if err != nil {
		t.Fatalf("NewFrameContext: %v", err)
	}
	return ctx, dev, fc
}

func TestBridgeBindUnbind(t *testing.T) {
	ctx, dev, fc := newFixture(t)
	b := NewBridge(dev, fc)

	if err := b.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := b.Bind(); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("second Bind: expected ErrAlreadyBound, got %v", err)
	}
	if err := b.Unbind(); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if err := b.Unbind(); !errors.Is(err, ErrNotBound) {
		t.Fatalf("second Unbind: expected ErrNotBound, got %v", err)
	}
	if ctx.depth != 0 {
		t.Fatalf("context depth = %d after unbind", ctx.depth)
	}
}

func TestBridgeDoUnbindsOnError(t *testing.T) {
	ctx, dev, fc := newFixture(t)
	b := NewBridge(dev, fc)

	boom := errors.New("boom")
	err := b.Do(func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Do: expected fn error, got %v", err)
	}
	if got := strings.Join(ctx.calls, ","); got != "push,pop" {
		t.Fatalf("calls = %s, want push,pop", got)
	}
}

func TestBridgeBindPushFailure(t *testing.T) {
	ctx, dev, fc := newFixture(t)
	ctx.pushErr = errors.New("no device")
	b := NewBridge(dev, fc)

	ran := false
	if err := b.Do(func() error { ran = true; return nil }); err == nil {
		t.Fatal("expected push error")
	}
	if ran {
		t.Fatal("fn ran without a bound context")
	}
	if err := b.Unbind(); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expected ErrNotBound after failed bind, got %v", err)
	}
}

func TestRefCountingOutlivesBridge(t *testing.T) {
	ctx, dev, fc := newFixture(t)
	b := NewBridge(dev, fc)
	fc.Unref()
	dev.Unref()

	frame, err := b.Frames().Wrap(0x1000)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	b.Close()
	if ctx.destroyed != 0 {
		t.Fatal("device context destroyed while a frame is outstanding")
	}

	frame.Release()
	frame.Release()
	if ctx.destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", ctx.destroyed)
	}
	if err := b.Bind(); err == nil {
		t.Fatal("Bind after Close should fail")
	}
}

func TestWrapPlaneAddresses(t *testing.T) {
	_, dev, fc := newFixture(t)
	defer dev.Unref()
	defer fc.Unref()

	f, err := fc.Wrap(0x1000)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	defer f.Release()

	if len(f.Planes) != 2 {
		t.Fatalf("planes = %d, want 2", len(f.Planes))
	}
	if f.Planes[0] != 0x1000 || f.Linesize[0] != 4 {
		t.Fatalf("luma plane = %#x/%d", f.Planes[0], f.Linesize[0])
	}
	if f.Planes[1] != 0x1000+8 || f.Linesize[1] != 4 {
		t.Fatalf("chroma plane = %#x/%d", f.Planes[1], f.Linesize[1])
	}
	if fc.refCount() != 2 {
		t.Fatalf("frame context refs = %d, want 2", fc.refCount())
	}
}

func TestWrapNilPointer(t *testing.T) {
	_, dev, fc := newFixture(t)
	defer dev.Unref()
	defer fc.Unref()

	if _, err := fc.Wrap(0); err == nil {
		t.Fatal("expected error wrapping a nil pointer")
	}
}

func TestParseOrdinal(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"1", 1, false},
		{"-1", 0, true},
		{"gpu0", 0, true},
	}
	for _, tt := range tests {
		got, err := parseOrdinal(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseOrdinal(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("parseOrdinal(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAllocateFramesRejectsOtherDevices(t *testing.T) {
	dev := NewDeviceContext("vaapi", "", &fakeContext{})
	defer dev.Unref()
	if _, err := allocateCUDAFrames(dev, pixfmt.BGRA, 16, 16); err == nil {
		t.Fatal("expected error for non-cuda device")
	}
}
