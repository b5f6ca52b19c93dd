package backend

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/process"
	"github.com/Norgate-AV/spbuild/internal/toolchain"
)

// gnu covers gcc and clang
type gnu struct {
	clang bool
}

func newGNU(clang bool) *gnu {
	return &gnu{clang: clang}
}

func (d *gnu) family() Family {
	return FamilyOpen
}

func (d *gnu) features() Feature {
	return FeatureCompileFromSource | FeatureCompileFromFile | FeatureLinkObjects | FeatureGenerateMappingData | FeatureGenerateModule
}

func (d *gnu) defaults() Options {
	o := Options{
		Toolchain:    "gcc",
		SDK:          "spbuild-sdk",
		Compiler:     "bin/g++",
		Linker:       "bin/g++",
		SymbolTool:   "bin/nm",
		Standard:     "c++20",
		Optimize:     []string{"-O2"},
		DebugCompile: []string{"-O0", "-g"},
		DebugLink:    []string{"-g"},
		ExtraCompile: []string{"-fdiagnostics-color=never"},
		SystemLibs:   []string{"dl", "pthread"},
		NativeLibs:   []string{"spbuild_runtime"},
		ObjectExt:    ".o",
		ModuleExt:    ".so",
	}

	if runtime.GOOS == "darwin" {
		o.ModuleExt = ".dylib"
		o.SystemLibs = nil
	}

	if d.clang {
		o.Toolchain = "llvm"
		o.Compiler = "bin/clang++"
		o.Linker = "bin/clang++"
		o.SymbolTool = "bin/llvm-nm"
		o.ExtraCompile = []string{"-fno-color-diagnostics"}
	}

	return o
}

func (d *gnu) compileArgs(o *Options, s *Settings, src, obj string) []string {
	args := []string{"-c", "-std=" + o.Standard, "-fPIC"}

	if flag := s.Machine.GnuFlag(); flag != "" {
		args = append(args, flag)
	}

	if s.Debug {
		args = append(args, o.DebugCompile...)
	} else {
		args = append(args, o.Optimize...)
	}

	for _, dir := range o.IncludeDirs {
		args = append(args, "-I"+dir)
	}

	args = append(args, o.ExtraCompile...)

	return append(args, "-o", obj, src)
}

func (d *gnu) linkArgs(o *Options, s *Settings, objects []string, addons []toolchain.Addon, out Outputs) []string {
	args := []string{"-shared", "-fPIC"}

	if flag := s.Machine.GnuFlag(); flag != "" {
		args = append(args, flag)
	}

	if s.Debug {
		args = append(args, o.DebugLink...)
	}

	args = append(args, "-o", out.Module)
	args = append(args, objects...)

	for _, dir := range o.LibDirs {
		args = append(args, "-L"+dir)
	}

	for _, lib := range o.NativeLibs {
		args = append(args, linkFlag(lib))
	}

	for _, lib := range libraryNames(addons) {
		args = append(args, linkFlag(lib))
	}

	for _, lib := range o.SystemLibs {
		args = append(args, linkFlag(lib))
	}

	// ELF has no delay loading; global add-ons are found at runtime through rpath
	for _, a := range addons {
		if !a.Global || a.Type == toolchain.AddonHeaderOnly {
			continue
		}

		for _, dir := range a.LibDirs {
			args = append(args, "-Wl,-rpath,"+dir)
		}
	}

	if runtime.GOOS == "darwin" {
		args = append(args, "-Wl,-map,"+out.Map)
	} else {
		args = append(args, "-Wl,-Map,"+out.Map)
	}

	return append(args, o.ExtraLink...)
}

func (d *gnu) outputs(o *Options, s *Settings) Outputs {
	base := moduleBase(s)

	return Outputs{
		Module: base + o.ModuleExt,
		Map:    base + ".map",
	}
}

// symbols lists the module's defined external symbols, the map format of the
// open toolchains carries no symbol types
func (d *gnu) symbols(ctx context.Context, b *compilerBackend, out Outputs) ([]metadata.Symbol, metadata.Demangler, error) {
	cmd := process.Command{
		Path: b.opts.SymbolTool,
		Args: []string{"--defined-only", "-g", out.Module},
	}

	res, err := b.deps.Runner.Run(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	if !res.Success() {
		return nil, nil, fmt.Errorf("%s exited with code %d: %s", cmd.Path, res.ExitCode, strings.TrimSpace(res.Output))
	}

	symbols, err := metadata.ParseSymbolListing(strings.NewReader(res.Output))
	if err != nil {
		return nil, nil, err
	}

	return symbols, metadata.ItaniumDemangler{}, nil
}

// linkFlag turns a library name or file name into a -l flag
func linkFlag(lib string) string {
	if strings.HasPrefix(lib, "-") {
		return lib
	}

	name := strings.TrimPrefix(lib, "lib")
	for _, ext := range []string{".a", ".so", ".dylib"} {
		name = strings.TrimSuffix(name, ext)
	}

	return "-l" + name
}
