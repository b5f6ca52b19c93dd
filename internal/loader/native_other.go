//go:build !darwin && !linux && !freebsd && !windows

package loader

import (
	"fmt"
	"runtime"
)

// NativeOpener reports that native loading is unavailable on this platform
type NativeOpener struct{}

func (NativeOpener) Open(path string) (Library, error) {
	return nil, fmt.Errorf("loading native modules is not supported on %s", runtime.GOOS)
}
