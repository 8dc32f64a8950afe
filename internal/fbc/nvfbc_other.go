//go:build !linux

package fbc

import "fmt"

type loader struct{}

// NewLoader returns a Loader that always fails: NvFBC only ships for Linux.
func NewLoader() Loader {
	return loader{}
}

func (loader) Load(name string, version Version) (Library, error) {
	return nil, fmt.Errorf("%w: %s is not available on this platform", ErrLibraryUnavailable, name)
}
