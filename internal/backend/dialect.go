package backend

import (
	"context"

	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/toolchain"
)

// dialect is the toolchain-specific part of a backend
type dialect interface {
	family() Family
	features() Feature
	defaults() Options

	// compileArgs returns the arguments compiling src into obj
	compileArgs(o *Options, s *Settings, src, obj string) []string

	// linkArgs returns the arguments linking objects into out
	linkArgs(o *Options, s *Settings, objects []string, addons []toolchain.Addon, out Outputs) []string

	outputs(o *Options, s *Settings) Outputs

	// symbols reads the public symbols of a linked module and returns the
	// demangler matching the toolchain's mangling scheme
	symbols(ctx context.Context, b *compilerBackend, out Outputs) ([]metadata.Symbol, metadata.Demangler, error)
}

// libraryNames returns the libraries contributed by linkable add-ons
func libraryNames(addons []toolchain.Addon) []string {
	var libs []string
	for _, a := range addons {
		if a.Type == toolchain.AddonHeaderOnly {
			continue
		}

		libs = append(libs, a.Libraries...)
	}

	return libs
}
