// Package backend drives external compiler and linker toolchains.
//
// Every toolchain family implements the same Backend contract. Variants differ
// only in flag spelling, default flags and in how compiler output is captured:
// proprietary toolchains compile units one after another with their output
// streamed line by line, open toolchains run one process per unit through the
// scheduler and capture each process's whole output.
package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/process"
	"github.com/Norgate-AV/spbuild/internal/scheduler"
	"github.com/Norgate-AV/spbuild/internal/toolchain"
	"github.com/Norgate-AV/spbuild/internal/unit"
)

var log = commonlog.GetLogger("spbuild.backend")

// Feature advertises an operation a backend supports
type Feature uint8

const (
	FeatureCompileFromSource Feature = 1 << iota
	FeatureCompileFromFile
	FeatureLinkObjects
	FeatureGenerateMappingData
	FeatureGenerateModule
)

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeatureCompileFromSource, "compile-from-source"},
	{FeatureCompileFromFile, "compile-from-file"},
	{FeatureLinkObjects, "link-objects"},
	{FeatureGenerateMappingData, "generate-mapping-data"},
	{FeatureGenerateModule, "generate-module"},
}

// Has returns true if every feature in x is set
func (f Feature) Has(x Feature) bool {
	return f&x == x
}

func (f Feature) String() string {
	var names []string
	for _, n := range featureNames {
		if f.Has(n.f) {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, "|")
}

// Family groups toolchains sharing a module and cache format
type Family int

const (
	FamilyProprietary Family = iota
	FamilyOpen
)

func (f Family) String() string {
	if f == FamilyProprietary {
		return "proprietary"
	}

	return "open"
}

// Backend is one compiler toolchain strategy
type Backend interface {
	Name() string
	Family() Family
	Features() Feature

	// Initialize resets the options to the toolchain defaults. It never touches disk.
	Initialize(instance string) bool

	// SolveSettings resolves the installed toolchain and SDK and stores absolute
	// tool paths and search directories in the options
	SolveSettings(s *Settings) error

	CompileUnits(ctx context.Context, c *unit.Container, s *Settings) *CompileResult
	CompileSource(ctx context.Context, source string, s *Settings) *CompileResult
	Link(ctx context.Context, units []*unit.Unit, s *Settings) *BuildResult

	// GenerateMetadata rebuilds the symbol table from the current link output
	GenerateMetadata(ctx context.Context, units []*unit.Unit, s *Settings) (*metadata.Table, error)

	SetOption(key, value string) error
	Option(key string) (string, bool)
	Options() *Options

	// Outputs returns the artifact paths a link produces
	Outputs(s *Settings) Outputs
}

// Deps are the collaborators a backend uses
type Deps struct {
	Runner    process.Runner
	Packages  toolchain.PackageManager
	Scheduler *scheduler.Scheduler
}

var dialects = map[string]func() dialect{
	"msvc":     func() dialect { return newMSVC(false) },
	"clang-cl": func() dialect { return newMSVC(true) },
	"gcc":      func() dialect { return newGNU(false) },
	"clang":    func() dialect { return newGNU(true) },
}

// Names lists the available backends
func Names() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// New creates the named backend
func New(name string, deps Deps) (Backend, error) {
	mk, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}

	if deps.Runner == nil {
		deps.Runner = process.NewExecRunner()
	}

	d := mk()
	opts := d.defaults()

	return &compilerBackend{
		name:    name,
		dialect: d,
		deps:    deps,
		opts:    &opts,
	}, nil
}
