package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/spbuild/internal/codes"
	"github.com/Norgate-AV/spbuild/internal/toolchain"
	"github.com/Norgate-AV/spbuild/internal/utils"
)

// localSDKDir is the SDK directory a project may carry next to its scripts
const localSDKDir = "sdk"

// compilerBackend implements Backend on top of a dialect
type compilerBackend struct {
	name    string
	dialect dialect
	deps    Deps
	opts    *Options

	solved bool
	addons []toolchain.Addon
}

func (b *compilerBackend) Name() string {
	return b.name
}

func (b *compilerBackend) Family() Family {
	return b.dialect.family()
}

func (b *compilerBackend) Features() Feature {
	return b.dialect.features()
}

func (b *compilerBackend) Options() *Options {
	return b.opts
}

func (b *compilerBackend) SetOption(key, value string) error {
	return b.opts.Set(key, value)
}

func (b *compilerBackend) Option(key string) (string, bool) {
	return b.opts.Get(key)
}

func (b *compilerBackend) Outputs(s *Settings) Outputs {
	return b.dialect.outputs(b.opts, s)
}

func (b *compilerBackend) Initialize(instance string) bool {
	opts := b.dialect.defaults()
	opts.Instance = instance

	b.opts = &opts
	b.solved = false
	b.addons = nil

	return instance != ""
}

func (b *compilerBackend) SolveSettings(s *Settings) error {
	if b.deps.Packages == nil {
		return codes.New(codes.NoCompiler, "no package manager configured")
	}

	if s.Machine == "" {
		s.Machine = utils.HostMachine()
	}

	if _, ok := utils.ParseMachine(string(s.Machine)); !ok {
		return codes.Newf(codes.SettingsInvalid, "unsupported machine %s", s.Machine)
	}

	if s.ModuleName == "" || s.OutputDir == "" {
		return codes.New(codes.SettingsInvalid, "module name and output directory are required")
	}

	toolchainID := first(s.Toolchain, b.opts.Toolchain)
	root, err := b.deps.Packages.ResolveToolchain(toolchainID)
	if err != nil {
		if errors.Is(err, toolchain.ErrNotInstalled) {
			return codes.Newf(codes.NoCompiler, "no compiler detected (%s), install one from the package manager", toolchainID)
		}

		return codes.Newf(codes.NoCompiler, "failed to resolve %s: %v", toolchainID, err)
	}

	sdkID := first(s.SDK, b.opts.SDK)
	sdk, err := b.deps.Packages.ResolveSDK(sdkID)
	if err != nil {
		log.Warningf("SDK %s is not installed, building without it", sdkID)
		sdk = ""
	}

	addons, err := b.deps.Packages.Addons()
	if err != nil {
		return codes.Newf(codes.SettingsInvalid, "failed to list add-ons: %v", err)
	}

	b.opts.ToolchainDir = root
	b.opts.SDKDir = sdk
	b.opts.Compiler = resolveTool(root, b.opts.Compiler)
	b.opts.Linker = resolveTool(root, b.opts.Linker)
	b.opts.SymbolTool = resolveTool(root, b.opts.SymbolTool)
	b.opts.Demangler = resolveTool(root, b.opts.Demangler)

	// working directory, toolchain, project SDK, external SDK, then add-ons
	includes := []string{s.ProjectDir, filepath.Join(root, "include"), filepath.Join(s.ProjectDir, localSDKDir, "include")}
	libs := []string{filepath.Join(root, "lib"), filepath.Join(s.ProjectDir, localSDKDir, "lib")}

	if sdk != "" {
		includes = append(includes, filepath.Join(sdk, "include"))
		libs = append(libs, filepath.Join(sdk, "lib"))
	}

	for _, a := range addons {
		includes = append(includes, a.Includes...)
		if a.Type != toolchain.AddonHeaderOnly {
			libs = append(libs, a.LibDirs...)
		}
	}

	b.opts.IncludeDirs = toolchain.GlobalizeAll(s.ProjectDir, includes)
	b.opts.LibDirs = toolchain.GlobalizeAll(s.ProjectDir, libs)
	b.addons = addons
	b.solved = true

	log.Infof("%s: toolchain %s at %s", b.name, toolchainID, root)

	return nil
}

// resolveTool makes a tool path absolute under the toolchain root. A bare name
// missing from the toolchain is left for PATH lookup.
func resolveTool(root, tool string) string {
	if tool == "" || filepath.IsAbs(tool) {
		return tool
	}

	p := toolchain.Globalize(root, tool)
	if _, err := os.Stat(p); err == nil || filepath.Base(tool) != tool {
		return p
	}

	return tool
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func (b *compilerBackend) requireSolved() error {
	if !b.solved {
		return fmt.Errorf("settings have not been solved")
	}

	return nil
}
