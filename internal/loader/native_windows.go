//go:build windows

package loader

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// NativeOpener opens modules with LoadLibrary
type NativeOpener struct{}

func (NativeOpener) Open(path string) (Library, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, err
	}

	return &nativeLibrary{dll: dll}, nil
}

type nativeLibrary struct {
	dll *windows.DLL
}

func (l *nativeLibrary) Call(symbol string, mode Mode) (int32, error) {
	proc, err := l.dll.FindProc(symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrEntryPoint, symbol, err)
	}

	r1, _, _ := proc.Call(uintptr(mode))

	return int32(r1), nil
}

func (l *nativeLibrary) Close() error {
	return l.dll.Release()
}
