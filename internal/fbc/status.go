package fbc

import "fmt"

// Status is a vendor NVFBCSTATUS value.
type Status int32

const (
	StatusSuccess       Status = 0
	StatusAPIVersion    Status = 1
	StatusInternal      Status = 2
	StatusInvalidParam  Status = 3
	StatusInvalidPtr    Status = 4
	StatusInvalidHandle Status = 5
	StatusMaxClients    Status = 6
	StatusUnsupported   Status = 7
	StatusOutOfMemory   Status = 8
	StatusBadRequest    Status = 9
	StatusX             Status = 10
	StatusGLX           Status = 11
	StatusGL            Status = 12
	StatusCUDA          Status = 13
	StatusEncoder       Status = 14
	StatusContext       Status = 15
	StatusMustRecreate  Status = 16
	StatusVulkan        Status = 17
)

// Code is the generic error class a vendor status belongs to.
type Code int

const (
	CodeUnknown Code = iota
	CodeInvalidArgument
	CodeBadAddress
	CodeBadHandle
	CodeTooManyClients
	CodeNotSupported
	CodeOutOfMemory
	CodeBadRequest
	CodeExternal
	CodeInputChanged
)

var codeNames = [...]string{
	CodeUnknown:         "unknown",
	CodeInvalidArgument: "invalid argument",
	CodeBadAddress:      "bad address",
	CodeBadHandle:       "bad handle",
	CodeTooManyClients:  "too many clients",
	CodeNotSupported:    "not supported",
	CodeOutOfMemory:     "out of memory",
	CodeBadRequest:      "bad request",
	CodeExternal:        "external library error",
	CodeInputChanged:    "input changed",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("code(%d)", int(c))
	}
	return codeNames[c]
}

type statusEntry struct {
	status Status
	code   Code
	desc   string
}

// statusTable is scanned in order. Each status appears once.
var statusTable = [...]statusEntry{
	{StatusAPIVersion, CodeInvalidArgument, "incompatible version"},
	{StatusInternal, CodeExternal, "internal error"},
	{StatusInvalidParam, CodeInvalidArgument, "invalid param"},
	{StatusInvalidPtr, CodeBadAddress, "invalid pointer"},
	{StatusInvalidHandle, CodeBadHandle, "invalid handle"},
	{StatusMaxClients, CodeTooManyClients, "too many clients"},
	{StatusUnsupported, CodeNotSupported, "not supported"},
	{StatusOutOfMemory, CodeOutOfMemory, "out of memory"},
	{StatusBadRequest, CodeBadRequest, "bad request"},
	{StatusX, CodeExternal, "X error"},
	{StatusGLX, CodeExternal, "GLX error"},
	{StatusGL, CodeExternal, "OpenGL error"},
	{StatusCUDA, CodeExternal, "CUDA error"},
	{StatusEncoder, CodeExternal, "HW encoder error"},
	{StatusContext, CodeBadHandle, "NvFBC context error"},
	{StatusMustRecreate, CodeInputChanged, "modeset event occurred"},
	{StatusVulkan, CodeExternal, "Vulkan error"},
}

// Lookup returns the generic code and description for a failed status.
// Statuses missing from the table report CodeUnknown.
func Lookup(s Status) (Code, string) {
	for _, e := range statusTable {
		if e.status == s {
			return e.code, e.desc
		}
	}
	return CodeUnknown, fmt.Sprintf("unknown error (status %d)", int32(s))
}

// StatusError is a translated vendor failure.
type StatusError struct {
	Op     string
	Status Status
	Code   Code
	Desc   string
	// Detail is the library's last error string, when one was available.
	Detail string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("nvfbc: %s: %s", e.Op, e.Desc)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Translate converts a vendor status into an error. Success yields nil.
func Translate(op string, s Status, detail string) error {
	if s == StatusSuccess {
		return nil
	}
	code, desc := Lookup(s)
	return &StatusError{Op: op, Status: s, Code: code, Desc: desc, Detail: detail}
}
