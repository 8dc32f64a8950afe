package hwdevice

import (
	"fmt"
	"strconv"

	"github.com/breeze-rmm/fbcgrab/internal/pixfmt"
)

// CUDALibraryName is the driver API shared object.
const CUDALibraryName = "libcuda.so.1"

// cudaFrameAlign is the linesize alignment of frames the capture library
// writes into device memory. They are tightly packed.
const cudaFrameAlign = 1

// cuCtxSchedBlockingSync is CU_CTX_SCHED_BLOCKING_SYNC.
const cuCtxSchedBlockingSync = 0x4

// CUDAError is a non-zero CUresult.
type CUDAError struct {
	Call   string
	Result int32
}

func (e *CUDAError) Error() string {
	return fmt.Sprintf("cuda: %s failed: CUresult %d", e.Call, e.Result)
}

func cuCheck(call string, res int32) error {
	if res == 0 {
		return nil
	}
	return &CUDAError{Call: call, Result: res}
}

// parseOrdinal maps a device selector to a CUDA device ordinal. Empty
// selects device 0.
func parseOrdinal(selector string) (int, error) {
	if selector == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(selector)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid cuda device %q: want a non-negative ordinal", selector)
	}
	return n, nil
}

func allocateCUDAFrames(dev *DeviceContext, sw pixfmt.Format, width, height int) (*FrameContext, error) {
	if dev.Type != "cuda" {
		return nil, fmt.Errorf("allocate cuda frames on %s device", dev.Type)
	}
	return NewFrameContext(dev, sw, width, height, cudaFrameAlign)
}
