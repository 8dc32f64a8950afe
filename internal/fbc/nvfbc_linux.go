//go:build linux

package fbc

import (
	"bytes"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/breeze-rmm/fbcgrab/internal/logging"
)

var log = logging.L("nvfbc")

// Mirrors of the NvFBC.h parameter structs. NVFBC_BOOL is a 32-bit enum.
const (
	outputNameLen = 128
	outputMax     = 5
)

type cBox struct{ x, y, w, h uint32 }

type cSize struct{ w, h uint32 }

type cOutput struct {
	id         uint32
	name       [outputNameLen]byte
	trackedBox cBox
}

type cCreateHandleParams struct {
	version                  uint32
	privateData              unsafe.Pointer
	privateDataSize          uint32
	externallyManagedContext uint32
	glxCtx                   unsafe.Pointer
	glxFBConfig              unsafe.Pointer
}

type cVersionOnlyParams struct {
	version uint32
}

type cGetStatusParams struct {
	version            uint32
	isCapturePossible  uint32
	currentlyCapturing uint32
	canCreateNow       uint32
	screenSize         cSize
	xrandrAvailable    uint32
	outputs            [outputMax]cOutput
	outputNum          uint32
	nvfbcVersion       uint32
	inModeset          uint32
}

type cCreateCaptureSessionParams struct {
	version                    uint32
	captureType                uint32
	trackingType               uint32
	outputID                   uint32
	captureBox                 cBox
	frameSize                  cSize
	withCursor                 uint32
	disableAutoModesetRecovery uint32
	roundFrameSize             uint32
	samplingRateMs             uint32
	pushModel                  uint32
	allowDirectCapture         uint32
}

type cToSysSetupParams struct {
	version              uint32
	bufferFormat         uint32
	ppBuffer             unsafe.Pointer
	withDiffMap          uint32
	ppDiffMap            unsafe.Pointer
	diffMapScalingFactor uint32
	diffMapSize          cSize
}

type cFrameGrabInfo struct {
	width                  uint32
	height                 uint32
	byteSize               uint32
	currentFrame           uint32
	isNewFrame             uint32
	timestampUs            uint64
	missedFrames           uint32
	requiredPostProcessing uint32
	directCapture          uint32
}

type cToSysGrabFrameParams struct {
	version       uint32
	flags         uint32
	frameGrabInfo unsafe.Pointer
	timeoutMs     uint32
}

type cToCudaSetupParams struct {
	version      uint32
	bufferFormat uint32
}

type cToCudaGrabFrameParams struct {
	version          uint32
	flags            uint32
	cudaDeviceBuffer unsafe.Pointer
	frameGrabInfo    unsafe.Pointer
	timeoutMs        uint32
}

// cFunctionList mirrors NVFBC_API_FUNCTION_LIST.
type cFunctionList struct {
	version               uint32
	getLastErrorStr       uintptr
	createHandle          uintptr
	destroyHandle         uintptr
	getStatus             uintptr
	createCaptureSession  uintptr
	destroyCaptureSession uintptr
	toSysSetUp            uintptr
	toSysGrabFrame        uintptr
	toCudaSetUp           uintptr
	toCudaGrabFrame       uintptr
	_                     [3]uintptr
	bindContext           uintptr
	releaseContext        uintptr
	_                     [4]uintptr
	toGLSetUp             uintptr
	toGLGrabFrame         uintptr
}

type loader struct{}

// NewLoader returns a Loader that dlopens the NvFBC shared object.
func NewLoader() Loader {
	return loader{}
}

type library struct {
	dl      uintptr
	version Version
	caps    Capabilities
	funcs   cFunctionList

	getLastErrorStr       func(h uint64) string
	createHandle          func(h *uint64, p *cCreateHandleParams) int32
	destroyHandle         func(h uint64, p *cVersionOnlyParams) int32
	getStatus             func(h uint64, p *cGetStatusParams) int32
	createCaptureSession  func(h uint64, p *cCreateCaptureSessionParams) int32
	destroyCaptureSession func(h uint64, p *cVersionOnlyParams) int32
	toSysSetUp            func(h uint64, p *cToSysSetupParams) int32
	toSysGrabFrame        func(h uint64, p *cToSysGrabFrameParams) int32
	toCudaSetUp           func(h uint64, p *cToCudaSetupParams) int32
	toCudaGrabFrame       func(h uint64, p *cToCudaGrabFrameParams) int32

	// sys holds the slot the library writes the ToSys buffer address into.
	// It stays pinned while the session exists.
	sys    *sysBuffer
	sysPin runtime.Pinner
}

func (loader) Load(name string, version Version) (Library, error) {
	dl, err := purego.Dlopen(name, purego.RTLD_LAZY|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrLibraryUnavailable, name, err)
	}

	sym, err := purego.Dlsym(dl, "NvFBCCreateInstance")
	if err != nil {
		purego.Dlclose(dl)
		return nil, fmt.Errorf("%w: resolve NvFBCCreateInstance: %v", ErrLibraryUnavailable, err)
	}

	var createInstance func(list *cFunctionList) int32
	purego.RegisterFunc(&createInstance, sym)

	l := &library{dl: dl, version: version}
	l.funcs.version = uint32(version.Minor | version.Major<<8)
	if st := Status(createInstance(&l.funcs)); st != StatusSuccess {
		purego.Dlclose(dl)
		return nil, fmt.Errorf("%w: %w", ErrLibraryUnavailable, Translate("create instance", st, ""))
	}

	required := []struct {
		name string
		ptr  uintptr
		fn   any
	}{
		{"nvFBCGetLastErrorStr", l.funcs.getLastErrorStr, &l.getLastErrorStr},
		{"nvFBCCreateHandle", l.funcs.createHandle, &l.createHandle},
		{"nvFBCDestroyHandle", l.funcs.destroyHandle, &l.destroyHandle},
		{"nvFBCGetStatus", l.funcs.getStatus, &l.getStatus},
		{"nvFBCCreateCaptureSession", l.funcs.createCaptureSession, &l.createCaptureSession},
		{"nvFBCDestroyCaptureSession", l.funcs.destroyCaptureSession, &l.destroyCaptureSession},
	}
	for _, r := range required {
		if r.ptr == 0 {
			purego.Dlclose(dl)
			return nil, fmt.Errorf("%w: missing entry point %s", ErrLibraryUnavailable, r.name)
		}
		purego.RegisterFunc(r.fn, r.ptr)
	}

	if l.funcs.toSysSetUp != 0 && l.funcs.toSysGrabFrame != 0 {
		purego.RegisterFunc(&l.toSysSetUp, l.funcs.toSysSetUp)
		purego.RegisterFunc(&l.toSysGrabFrame, l.funcs.toSysGrabFrame)
		l.caps.ToSys = true
	}
	if l.funcs.toCudaSetUp != 0 && l.funcs.toCudaGrabFrame != 0 {
		purego.RegisterFunc(&l.toCudaSetUp, l.funcs.toCudaSetUp)
		purego.RegisterFunc(&l.toCudaGrabFrame, l.funcs.toCudaGrabFrame)
		l.caps.ToCUDA = true
	}
	l.caps.BindContext = l.funcs.bindContext != 0 && l.funcs.releaseContext != 0

	log.Debug("library loaded", "name", name, "clientVersion", version.String(),
		"toSys", l.caps.ToSys, "toCuda", l.caps.ToCUDA)
	return l, nil
}

// structVersion computes NVFBC_STRUCT_VERSION for a parameter struct.
func (l *library) structVersion(size uintptr, ver uint32) uint32 {
	api := uint32(l.version.Minor|l.version.Major<<8) & 0xff
	return uint32(size) | ver<<16 | api<<24
}

func (l *library) Version() Version           { return l.version }
func (l *library) Capabilities() Capabilities { return l.caps }

func (l *library) LastError(h Handle) string {
	return l.getLastErrorStr(uint64(h))
}

func (l *library) CreateHandle() (Handle, Status) {
	var h uint64
	p := cCreateHandleParams{}
	p.version = l.structVersion(unsafe.Sizeof(p), 2)
	st := Status(l.createHandle(&h, &p))
	return Handle(h), st
}

func (l *library) DestroyHandle(h Handle) Status {
	p := cVersionOnlyParams{}
	p.version = l.structVersion(unsafe.Sizeof(p), 1)
	return Status(l.destroyHandle(uint64(h), &p))
}

func (l *library) GetStatus(h Handle) (StatusInfo, Status) {
	p := cGetStatusParams{}
	p.version = l.structVersion(unsafe.Sizeof(p), 2)
	st := Status(l.getStatus(uint64(h), &p))
	if st != StatusSuccess {
		return StatusInfo{}, st
	}

	info := StatusInfo{
		CapturePossible:    p.isCapturePossible != 0,
		CurrentlyCapturing: p.currentlyCapturing != 0,
		CanCreateNow:       p.canCreateNow != 0,
		ScreenWidth:        int(p.screenSize.w),
		ScreenHeight:       int(p.screenSize.h),
		XRandRAvailable:    p.xrandrAvailable != 0,
		LibraryVersion: Version{
			Major: int(p.nvfbcVersion>>8) & 0xff,
			Minor: int(p.nvfbcVersion) & 0xff,
		},
		InModeset: p.inModeset != 0,
	}
	n := min(int(p.outputNum), outputMax)
	for _, o := range p.outputs[:n] {
		name := o.name[:]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		info.Outputs = append(info.Outputs, Output{
			ID:   o.id,
			Name: string(name),
			Box: Box{
				X: int(o.trackedBox.x),
				Y: int(o.trackedBox.y),
				W: int(o.trackedBox.w),
				H: int(o.trackedBox.h),
			},
		})
	}
	return info, st
}

func (l *library) CreateCaptureSession(h Handle, s SessionParams) Status {
	p := cCreateCaptureSessionParams{
		captureType:  uint32(s.CaptureType),
		trackingType: uint32(s.Tracking),
		outputID:     s.OutputID,
		captureBox: cBox{
			x: uint32(s.Box.X),
			y: uint32(s.Box.Y),
			w: uint32(s.Box.W),
			h: uint32(s.Box.H),
		},
		frameSize:                  cSize{w: uint32(s.FrameWidth), h: uint32(s.FrameHeight)},
		withCursor:                 boolU32(s.WithCursor),
		disableAutoModesetRecovery: boolU32(s.DisableAutoModesetRecovery),
		roundFrameSize:             boolU32(s.RoundFrameSize),
		samplingRateMs:             uint32(s.SamplingRate / time.Millisecond),
		pushModel:                  boolU32(s.PushModel),
	}
	p.version = l.structVersion(unsafe.Sizeof(p), 6)
	return Status(l.createCaptureSession(uint64(h), &p))
}

func (l *library) DestroyCaptureSession(h Handle) Status {
	p := cVersionOnlyParams{}
	p.version = l.structVersion(unsafe.Sizeof(p), 1)
	st := Status(l.destroyCaptureSession(uint64(h), &p))
	l.releaseSysBuffer()
	return st
}

type sysBuffer struct {
	ptr unsafe.Pointer
}

func (b *sysBuffer) Bytes(n int) []byte {
	if b.ptr == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(b.ptr), n)
}

func (l *library) ToSysSetUp(h Handle, format BufferFormat) (SysBuffer, Status) {
	if !l.caps.ToSys {
		return nil, StatusUnsupported
	}
	l.releaseSysBuffer()

	buf := &sysBuffer{}
	l.sysPin.Pin(buf)

	p := cToSysSetupParams{
		bufferFormat: uint32(format),
		ppBuffer:     unsafe.Pointer(&buf.ptr),
	}
	p.version = l.structVersion(unsafe.Sizeof(p), 3)
	st := Status(l.toSysSetUp(uint64(h), &p))
	if st != StatusSuccess {
		l.sysPin.Unpin()
		return nil, st
	}
	l.sys = buf
	return buf, st
}

func (l *library) ToSysGrabFrame(h Handle, flags GrabFlags) (FrameInfo, Status) {
	if !l.caps.ToSys {
		return FrameInfo{}, StatusUnsupported
	}

	var info cFrameGrabInfo
	var pin runtime.Pinner
	pin.Pin(&info)
	defer pin.Unpin()

	p := cToSysGrabFrameParams{
		flags:         uint32(flags),
		frameGrabInfo: unsafe.Pointer(&info),
	}
	p.version = l.structVersion(unsafe.Sizeof(p), 2)
	st := Status(l.toSysGrabFrame(uint64(h), &p))
	return info.toGo(), st
}

func (l *library) ToCudaSetUp(h Handle, format BufferFormat) Status {
	if !l.caps.ToCUDA {
		return StatusUnsupported
	}
	p := cToCudaSetupParams{bufferFormat: uint32(format)}
	p.version = l.structVersion(unsafe.Sizeof(p), 1)
	return Status(l.toCudaSetUp(uint64(h), &p))
}

func (l *library) ToCudaGrabFrame(h Handle, flags GrabFlags) (DevicePtr, FrameInfo, Status) {
	if !l.caps.ToCUDA {
		return 0, FrameInfo{}, StatusUnsupported
	}

	var (
		devPtr uint64
		info   cFrameGrabInfo
		pin    runtime.Pinner
	)
	pin.Pin(&devPtr)
	pin.Pin(&info)
	defer pin.Unpin()

	p := cToCudaGrabFrameParams{
		flags:            uint32(flags),
		cudaDeviceBuffer: unsafe.Pointer(&devPtr),
		frameGrabInfo:    unsafe.Pointer(&info),
	}
	p.version = l.structVersion(unsafe.Sizeof(p), 2)
	st := Status(l.toCudaGrabFrame(uint64(h), &p))
	return DevicePtr(devPtr), info.toGo(), st
}

func (l *library) Unload() error {
	l.releaseSysBuffer()
	if l.dl == 0 {
		return nil
	}
	err := purego.Dlclose(l.dl)
	l.dl = 0
	return err
}

func (l *library) releaseSysBuffer() {
	if l.sys == nil {
		return
	}
	l.sys.ptr = nil
	l.sys = nil
	l.sysPin.Unpin()
}

func (i *cFrameGrabInfo) toGo() FrameInfo {
	return FrameInfo{
		Width:        int(i.width),
		Height:       int(i.height),
		ByteSize:     int(i.byteSize),
		CurrentFrame: i.currentFrame,
		IsNewFrame:   i.isNewFrame != 0,
		Timestamp:    time.Duration(i.timestampUs) * time.Microsecond,
		MissedFrames: i.missedFrames,
	}
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
