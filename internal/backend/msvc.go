package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/toolchain"
)

// msvc covers the proprietary toolchain and its LLVM-based drop-in
type msvc struct {
	llvm bool
}

func newMSVC(llvm bool) *msvc {
	return &msvc{llvm: llvm}
}

func (d *msvc) family() Family {
	return FamilyProprietary
}

func (d *msvc) features() Feature {
	return FeatureCompileFromFile | FeatureLinkObjects | FeatureGenerateMappingData | FeatureGenerateModule
}

func (d *msvc) defaults() Options {
	o := Options{
		Toolchain:    "msvc",
		SDK:          "spbuild-sdk",
		Compiler:     "bin/cl.exe",
		Linker:       "bin/link.exe",
		Demangler:    "bin/undname.exe",
		Standard:     "c++20",
		Optimize:     []string{"/O2", "/Oi"},
		DebugCompile: []string{"/Od", "/Zi"},
		DebugLink:    []string{"/DEBUG:FULL"},
		ExtraCompile: []string{"/FC"},
		Subsystem:    "WINDOWS",
		SystemLibs:   []string{"kernel32.lib", "user32.lib"},
		NativeLibs:   []string{"spbuild_runtime.lib"},
		ObjectExt:    ".obj",
		ModuleExt:    ".dll",
		Stream:       true,
	}

	if d.llvm {
		o.Toolchain = "llvm"
		o.Compiler = "bin/clang-cl.exe"
		o.Linker = "bin/lld-link.exe"
		o.Demangler = "bin/llvm-undname.exe"
		o.ExtraCompile = []string{"-fdiagnostics-absolute-paths"}
	}

	return o
}

func (d *msvc) compileArgs(o *Options, s *Settings, src, obj string) []string {
	args := []string{"/nologo", "/c", "/EHsc", "/std:" + o.Standard}

	if s.Debug {
		args = append(args, "/MDd")
		args = append(args, o.DebugCompile...)
		args = append(args, "/Fd"+strings.TrimSuffix(obj, filepath.Ext(obj))+".pdb")
	} else {
		args = append(args, "/MD")
		args = append(args, o.Optimize...)
	}

	for _, dir := range o.IncludeDirs {
		args = append(args, "/I"+dir)
	}

	args = append(args, o.ExtraCompile...)
	args = append(args, "/Fo"+obj, src)

	return args
}

func (d *msvc) linkArgs(o *Options, s *Settings, objects []string, addons []toolchain.Addon, out Outputs) []string {
	args := []string{
		"/nologo",
		"/DLL",
		"/MACHINE:" + s.Machine.LinkerFlag(),
		"/SUBSYSTEM:" + o.Subsystem,
		"/DYNAMICBASE",
		"/MAP:" + out.Map,
		"/OUT:" + out.Module,
	}

	if s.Debug {
		args = append(args, o.DebugLink...)
		args = append(args, "/PDB:"+out.PDB)
	} else {
		args = append(args, "/INCREMENTAL:NO", "/OPT:REF")
	}

	for _, dir := range o.LibDirs {
		args = append(args, "/LIBPATH:"+dir)
	}

	args = append(args, objects...)
	args = append(args, o.SystemLibs...)
	args = append(args, o.NativeLibs...)

	for _, lib := range libraryNames(addons) {
		args = append(args, withExt(lib, ".lib"))
	}

	delayed := false
	for _, a := range addons {
		if !a.Global || a.Type == toolchain.AddonHeaderOnly {
			continue
		}

		for _, lib := range a.Libraries {
			args = append(args, "/DELAYLOAD:"+strings.TrimSuffix(lib, filepath.Ext(lib))+".dll")
			delayed = true
		}
	}

	if delayed {
		args = append(args, "delayimp.lib")
	}

	return append(args, o.ExtraLink...)
}

func (d *msvc) outputs(o *Options, s *Settings) Outputs {
	base := moduleBase(s)

	return Outputs{
		Module: base + o.ModuleExt,
		Map:    base + ".map",
		PDB:    base + ".pdb",
	}
}

func (d *msvc) symbols(_ context.Context, b *compilerBackend, out Outputs) ([]metadata.Symbol, metadata.Demangler, error) {
	f, err := os.Open(out.Map)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open map file: %w", err)
	}
	defer f.Close()

	symbols, err := metadata.ParseMapFile(f)
	if err != nil {
		return nil, nil, err
	}

	return symbols, &metadata.UndnameDemangler{Runner: b.deps.Runner, Path: b.opts.Demangler}, nil
}

func withExt(lib, ext string) string {
	if filepath.Ext(lib) == "" {
		return lib + ext
	}

	return lib
}
