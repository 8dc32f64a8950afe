// Package fbc describes the NVIDIA frame buffer capture (NvFBC) client API
// as consumed by the capture device, and provides a runtime loader for
// libnvidia-fbc.
package fbc

import (
	"errors"
	"fmt"
	"time"
)

// LibraryName is the shared object exporting NvFBCCreateInstance.
const LibraryName = "libnvidia-fbc.so.1"

// ClientVersion is the API version this client is built against.
var ClientVersion = Version{Major: 1, Minor: 8}

// ErrLibraryUnavailable is returned when the library or a required entry
// point cannot be resolved.
var ErrLibraryUnavailable = errors.New("nvfbc: library unavailable")

// Version is an NvFBC API version.
type Version struct {
	Major, Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Handle is an opaque NvFBC session handle.
type Handle uint64

// CaptureType selects where grabbed frames are delivered.
type CaptureType uint32

const (
	CaptureToSys  CaptureType = 0
	CaptureToCUDA CaptureType = 1
)

// TrackingType selects what the capture box is relative to.
type TrackingType uint32

const (
	TrackingDefault TrackingType = 0
	TrackingOutput  TrackingType = 1
	TrackingScreen  TrackingType = 2
)

// BufferFormat is the vendor pixel layout of grabbed frames.
type BufferFormat uint32

const (
	BufferARGB    BufferFormat = 0
	BufferRGB     BufferFormat = 1
	BufferNV12    BufferFormat = 2
	BufferYUV444P BufferFormat = 3
	BufferRGBA    BufferFormat = 4
	BufferBGRA    BufferFormat = 5
)

// GrabFlags modify a grab call.
type GrabFlags uint32

const (
	GrabNoFlags GrabFlags = 0
	// GrabNoWait returns the latest frame immediately instead of waiting
	// for a new one.
	GrabNoWait GrabFlags = 1 << 0
)

// Box is a rectangle in screen coordinates.
type Box struct {
	X, Y, W, H int
}

func (b Box) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", b.W, b.H, b.X, b.Y)
}

// Output is a RandR output tracked by the library.
type Output struct {
	ID   uint32
	Name string
	Box  Box
}

// StatusInfo is the result of a status query.
type StatusInfo struct {
	CapturePossible    bool
	CurrentlyCapturing bool
	CanCreateNow       bool
	ScreenWidth        int
	ScreenHeight       int
	XRandRAvailable    bool
	Outputs            []Output
	LibraryVersion     Version
	InModeset          bool
}

// SessionParams configure a capture session.
type SessionParams struct {
	CaptureType  CaptureType
	Tracking     TrackingType
	OutputID     uint32
	Box          Box
	FrameWidth   int
	FrameHeight  int
	SamplingRate time.Duration
	WithCursor   bool
	// DisableAutoModesetRecovery makes the library report StatusMustRecreate
	// after a mode change instead of silently recovering.
	DisableAutoModesetRecovery bool
	RoundFrameSize             bool
	PushModel                  bool
}

// FrameInfo describes one grabbed frame.
type FrameInfo struct {
	Width        int
	Height       int
	ByteSize     int
	CurrentFrame uint32
	IsNewFrame   bool
	Timestamp    time.Duration
	MissedFrames uint32
}

// DevicePtr is a CUDA device address.
type DevicePtr uintptr

// SysBuffer is the library-owned host buffer a ToSys session grabs into.
type SysBuffer interface {
	// Bytes returns the first n bytes of the current frame. The slice
	// aliases library memory and is overwritten by the next grab.
	Bytes(n int) []byte
}

// Capabilities lists the optional entry points the loaded library exposes.
type Capabilities struct {
	ToSys       bool
	ToCUDA      bool
	BindContext bool
}

// Library is a loaded NvFBC function list.
type Library interface {
	Version() Version
	Capabilities() Capabilities
	LastError(h Handle) string

	CreateHandle() (Handle, Status)
	DestroyHandle(h Handle) Status
	GetStatus(h Handle) (StatusInfo, Status)
	CreateCaptureSession(h Handle, p SessionParams) Status
	DestroyCaptureSession(h Handle) Status

	ToSysSetUp(h Handle, format BufferFormat) (SysBuffer, Status)
	ToSysGrabFrame(h Handle, flags GrabFlags) (FrameInfo, Status)
	ToCudaSetUp(h Handle, format BufferFormat) Status
	ToCudaGrabFrame(h Handle, flags GrabFlags) (DevicePtr, FrameInfo, Status)

	// Unload releases the function list and the shared object.
	Unload() error
}

// Loader resolves a Library by shared object name.
type Loader interface {
	Load(name string, version Version) (Library, error)
}
