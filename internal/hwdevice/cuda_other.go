//go:build !linux

package hwdevice

import (
	"fmt"

	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

type cudaProvider struct{}

// NewCUDA returns a Provider that reports the device as unavailable.
func NewCUDA() Provider {
	return cudaProvider{}
}

func (cudaProvider) Type() string { return "cuda" }

func (cudaProvider) CreateDeviceContext(selector string) (*DeviceContext, error) {
	if _, err := parseOrdinal(selector); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s is not available on this platform", ErrDeviceUnavailable, CUDALibraryName)
}

func (cudaProvider) AllocateFrameContext(dev *DeviceContext, sw pixfmt.Format, width, height int) (*FrameContext, error) {
	return allocateCUDAFrames(dev, sw, width, height)
}
