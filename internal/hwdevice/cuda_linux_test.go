//go:build linux

package hwdevice

import (
	"errors"
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

// fakeDriver emulates the per-thread context stack of the driver API.
type fakeDriver struct {
	current   map[int][]uintptr
	createTid int
	popTid    int
	popResult int32
	destroyed []uintptr
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{current: make(map[int][]uintptr)}
}

func (d *fakeDriver) api() *cudaAPI {
	return &cudaAPI{
		cuDeviceGet: func(dev *int32, ordinal int32) int32 {
			*dev = ordinal
			return 0
		},
		cuCtxCreate: func(ctx *uintptr, flags uint32, dev int32) int32 {
			d.createTid = unix.Gettid()
			*ctx = 0xc0 + uintptr(dev)
			d.current[d.createTid] = append(d.current[d.createTid], *ctx)
			// Give the scheduler a chance to move the goroutine.
			runtime.Gosched()
			return 0
		},
		cuCtxPop: func(ctx *uintptr) int32 {
			d.popTid = unix.Gettid()
			if d.popResult != 0 {
				return d.popResult
			}
			stack := d.current[d.popTid]
			if len(stack) == 0 {
				return 201 // CUDA_ERROR_INVALID_CONTEXT
			}
			*ctx = stack[len(stack)-1]
			d.current[d.popTid] = stack[:len(stack)-1]
			return 0
		},
		cuCtxDestroy: func(ctx uintptr) int32 {
			d.destroyed = append(d.destroyed, ctx)
			return 0
		},
	}
}

func TestCreateFloatingContextLeavesNothingCurrent(t *testing.T) {
	for i := 0; i < 50; i++ {
		drv := newFakeDriver()
		ctx, err := createFloatingContext(drv.api(), 1)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if ctx != 0xc1 {
			t.Fatalf("ctx = %#x, want 0xc1", ctx)
		}
		if drv.createTid != drv.popTid {
			t.Fatalf("create on thread %d, pop on thread %d", drv.createTid, drv.popTid)
		}
		for tid, stack := range drv.current {
			if len(stack) != 0 {
				t.Fatalf("context left current on thread %d: %#x", tid, stack)
			}
		}
	}
}

func TestCreateFloatingContextPopFailureDestroys(t *testing.T) {
	drv := newFakeDriver()
	drv.popResult = 1

	_, err := createFloatingContext(drv.api(), 0)
	var cuErr *CUDAError
	if !errors.As(err, &cuErr) || cuErr.Call != "cuCtxPopCurrent" {
		t.Fatalf("expected cuCtxPopCurrent error, got %v", err)
	}
	if len(drv.destroyed) != 1 || drv.destroyed[0] != 0xc0 {
		t.Fatalf("destroyed = %#x, want [0xc0]", drv.destroyed)
	}
}
