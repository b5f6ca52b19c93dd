package backend

import (
	"path/filepath"

	"github.com/Norgate-AV/spbuild/internal/cache"
	"github.com/Norgate-AV/spbuild/internal/codes"
	"github.com/Norgate-AV/spbuild/internal/config"
	"github.com/Norgate-AV/spbuild/internal/diag"
	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/unit"
	"github.com/Norgate-AV/spbuild/internal/utils"
)

// Settings are the per-build inputs of a backend
type Settings struct {
	ProjectDir string
	OutputDir  string
	ModuleName string

	// Package identities overriding the backend defaults
	Toolchain string
	SDK       string

	Machine utils.Machine
	Debug   bool
	DevMode bool
	NoCache bool

	// Cache is the loaded build cache, nil compiles every unit
	Cache *cache.Ledger
	// Headers are the project headers recorded on commit
	Headers []unit.Header
}

// NewSettings derives build settings from the configuration
func NewSettings(cfg *config.Config) *Settings {
	return &Settings{
		ProjectDir: cfg.ProjectDir,
		OutputDir:  cfg.OutputDir,
		ModuleName: cfg.ModuleName,
		Toolchain:  cfg.Toolchain,
		SDK:        cfg.SDK,
		Machine:    cfg.Machine,
		Debug:      cfg.Debug,
		DevMode:    cfg.DevMode,
		NoCache:    cfg.NoCache,
	}
}

// Outputs are the artifacts of a link
type Outputs struct {
	Module string
	Map    string
	// PDB is empty for toolchains without a separate debug database
	PDB string
}

// moduleBase returns the artifact path without extension.
// Debug artifacts are distinguished from final distributable ones by name.
func moduleBase(s *Settings) string {
	name := s.ModuleName
	if s.Debug {
		name += "_Debug"
	}

	return filepath.Join(s.OutputDir, name)
}

// CompileResult is the outcome of compiling a set of units
type CompileResult struct {
	Success  bool
	HasError bool
	// Code is the tagged error code when HasError is set
	Code string
	// Message is the tagged error summary
	Message string

	Errors   string
	Warnings string
	Verbose  string

	Diagnostics []diag.Diagnostic

	// ScriptsCount is the number of units compiled, 0 when the cache satisfied the request
	ScriptsCount int
	// Compiled are the units compiled successfully in this pass
	Compiled []*unit.Unit
	// Objects are the object files produced in this pass
	Objects []string
}

// BuildResult is the outcome of a link
type BuildResult struct {
	Success  bool
	HasError bool
	Code     string
	// Error is the tagged, human-readable error text
	Error string

	Warnings string
	Verbose  string

	Module   []byte
	Metadata []byte
	Table    *metadata.Table

	ModulePath string
	MapPath    string
	OutputDir  string

	// Backend is the name of the backend that produced the module
	Backend string
	Family  Family
	Debug   bool
	// Reused is set when nothing was compiled and the previous module was kept
	Reused bool

	// BuildID is set by the pipeline
	BuildID string
	// Compile is the compile pass preceding the link, set by the pipeline
	Compile *CompileResult
}

func compileFailure(code, detail string) *CompileResult {
	msg := codes.New(code, detail).Error()

	return &CompileResult{
		HasError: true,
		Code:     code,
		Message:  msg,
		Errors:   msg + "\n",
	}
}

func buildFailure(code, detail string) *BuildResult {
	return &BuildResult{
		HasError: true,
		Code:     code,
		Error:    codes.New(code, detail).Error(),
	}
}
