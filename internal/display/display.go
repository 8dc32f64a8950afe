// Package display opens the X display a capture session runs against and
// reports its geometry.
package display

import (
	"errors"
	"os"
)

// ErrDisplayNotFound is returned when no display name is given and $DISPLAY
// is unset.
var ErrDisplayNotFound = errors.New("display not found")

// Display is an open connection to a display server.
type Display interface {
	// Name is the resolved display name, e.g. ":0".
	Name() string

	// ScreenSize returns the size of the default screen in pixels.
	ScreenSize() (width, height int, err error)

	// Close releases the connection.
	Close() error
}

// Opener opens a display by name. An empty name means the environment
// default.
type Opener interface {
	OpenDisplay(name string) (Display, error)
}

// ResolveName returns name, or $DISPLAY when name is empty.
func ResolveName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if env := os.Getenv("DISPLAY"); env != "" {
		return env, nil
	}
	return "", ErrDisplayNotFound
}
