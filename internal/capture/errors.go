package capture

import (
	"errors"
	"fmt"
)

// Error classes returned by Open, PullFrame and Probe. Vendor failures are
// joined with the matching *fbc.StatusError, so both errors.Is against
// these sentinels and errors.As to *fbc.StatusError work.
var (
	ErrLoad           = errors.New("capture: cannot load capture library")
	ErrConfig         = errors.New("capture: invalid configuration")
	ErrOutputNotFound = fmt.Errorf("%w: output not found", ErrConfig)
	ErrExternal       = errors.New("capture: external dependency failed")
	ErrSession        = errors.New("capture: cannot set up capture session")
	ErrGrab           = errors.New("capture: cannot grab frame")
	ErrMustRecreate   = fmt.Errorf("%w: display mode changed, device must be reopened", ErrGrab)
	ErrClosed         = errors.New("capture: device closed")
)
