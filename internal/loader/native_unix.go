//go:build darwin || linux || freebsd

package loader

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// NativeOpener opens modules with the platform dynamic loader
type NativeOpener struct{}

func (NativeOpener) Open(path string) (Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}

	return &nativeLibrary{handle: handle}, nil
}

type nativeLibrary struct {
	handle uintptr
}

func (l *nativeLibrary) Call(symbol string, mode Mode) (int32, error) {
	sym, err := purego.Dlsym(l.handle, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrEntryPoint, symbol, err)
	}

	var fn func(int32) int32
	purego.RegisterFunc(&fn, sym)

	return fn(int32(mode)), nil
}

func (l *nativeLibrary) Close() error {
	return purego.Dlclose(l.handle)
}
