//go:build linux

package hwdevice

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

type cudaAPI struct {
	cuInit       func(flags uint32) int32
	cuDeviceGet  func(dev *int32, ordinal int32) int32
	cuCtxCreate  func(ctx *uintptr, flags uint32, dev int32) int32
	cuCtxPush    func(ctx uintptr) int32
	cuCtxPop     func(ctx *uintptr) int32
	cuCtxDestroy func(ctx uintptr) int32
}

type cudaProvider struct {
	once sync.Once
	api  *cudaAPI
	err  error
}

// NewCUDA returns a Provider backed by the CUDA driver API. The driver is
// loaded on first use.
func NewCUDA() Provider {
	return &cudaProvider{}
}

func (p *cudaProvider) Type() string { return "cuda" }

func (p *cudaProvider) load() (*cudaAPI, error) {
	p.once.Do(func() {
		dl, err := purego.Dlopen(CUDALibraryName, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			p.err = fmt.Errorf("%w: load %s: %v", ErrDeviceUnavailable, CUDALibraryName, err)
			return
		}

		api := &cudaAPI{}
		syms := []struct {
			name string
			fn   any
		}{
			{"cuInit", &api.cuInit},
			{"cuDeviceGet", &api.cuDeviceGet},
			{"cuCtxCreate_v2", &api.cuCtxCreate},
			{"cuCtxPushCurrent_v2", &api.cuCtxPush},
			{"cuCtxPopCurrent_v2", &api.cuCtxPop},
			{"cuCtxDestroy_v2", &api.cuCtxDestroy},
		}
		for _, s := range syms {
			addr, err := purego.Dlsym(dl, s.name)
			if err != nil {
				purego.Dlclose(dl)
				p.err = fmt.Errorf("%w: resolve %s: %v", ErrDeviceUnavailable, s.name, err)
				return
			}
			purego.RegisterFunc(s.fn, addr)
		}

		if err := cuCheck("cuInit", api.cuInit(0)); err != nil {
			purego.Dlclose(dl)
			p.err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
			return
		}
		p.api = api
		log.Debug("cuda driver loaded", "library", CUDALibraryName)
	})
	return p.api, p.err
}

func (p *cudaProvider) CreateDeviceContext(selector string) (*DeviceContext, error) {
	ordinal, err := parseOrdinal(selector)
	if err != nil {
		return nil, err
	}
	api, err := p.load()
	if err != nil {
		return nil, err
	}

	ctx, err := createFloatingContext(api, ordinal)
	if err != nil {
		return nil, err
	}

	log.Debug("cuda context created", "ordinal", ordinal)
	return NewDeviceContext(p.Type(), selector, &cudaContext{api: api, ctx: ctx}), nil
}

// createFloatingContext creates a context on the given device and pops it
// again, so that no context is left current on the calling thread. The
// create and the pop have to run on the same OS thread.
func createFloatingContext(api *cudaAPI, ordinal int) (uintptr, error) {
	var dev int32
	if err := cuCheck("cuDeviceGet", api.cuDeviceGet(&dev, int32(ordinal))); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var ctx uintptr
	if err := cuCheck("cuCtxCreate", api.cuCtxCreate(&ctx, cuCtxSchedBlockingSync, dev)); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	var popped uintptr
	if err := cuCheck("cuCtxPopCurrent", api.cuCtxPop(&popped)); err != nil {
		api.cuCtxDestroy(ctx)
		return 0, err
	}
	return ctx, nil
}

func (p *cudaProvider) AllocateFrameContext(dev *DeviceContext, sw pixfmt.Format, width, height int) (*FrameContext, error) {
	return allocateCUDAFrames(dev, sw, width, height)
}

type cudaContext struct {
	api *cudaAPI
	ctx uintptr
}

func (c *cudaContext) Push() error {
	return cuCheck("cuCtxPushCurrent", c.api.cuCtxPush(c.ctx))
}

func (c *cudaContext) Pop() error {
	var popped uintptr
	return cuCheck("cuCtxPopCurrent", c.api.cuCtxPop(&popped))
}

func (c *cudaContext) Destroy() error {
	if c.ctx == 0 {
		return nil
	}
	err := cuCheck("cuCtxDestroy", c.api.cuCtxDestroy(c.ctx))
	c.ctx = 0
	return err
}
