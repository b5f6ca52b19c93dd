// Package pipeline runs one build: preprocess, compile, link and package.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/Norgate-AV/spbuild/internal/backend"
	"github.com/Norgate-AV/spbuild/internal/cache"
	"github.com/Norgate-AV/spbuild/internal/codes"
	"github.com/Norgate-AV/spbuild/internal/config"
	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/moddb"
	"github.com/Norgate-AV/spbuild/internal/preprocess"
	"github.com/Norgate-AV/spbuild/internal/process"
	"github.com/Norgate-AV/spbuild/internal/scheduler"
	"github.com/Norgate-AV/spbuild/internal/toolchain"
	"github.com/Norgate-AV/spbuild/internal/unit"
)

var log = commonlog.GetLogger("spbuild.pipeline")

// EnvelopeExt is appended to a module path to name its module database file
const EnvelopeExt = ".spdb"

// Deps are the collaborators of a pipeline. Zero values select the real ones.
type Deps struct {
	Runner   process.Runner
	Packages toolchain.PackageManager
	// Backend replaces the backend named by the configuration
	Backend backend.Backend
}

// Pipeline builds modules for one project
type Pipeline struct {
	cfg     *config.Config
	backend backend.Backend
	sched   *scheduler.Scheduler
}

// New creates a pipeline for cfg
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	sched := scheduler.New(cfg.Workers)

	b := deps.Backend
	if b == nil {
		packages := deps.Packages
		if packages == nil {
			packages = toolchain.NewDirManager(cfg.PackagesRoot)
		}

		var err error
		b, err = backend.New(cfg.Backend, backend.Deps{
			Runner:    deps.Runner,
			Packages:  packages,
			Scheduler: sched,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Pipeline{cfg: cfg, backend: b, sched: sched}, nil
}

// Backend returns the backend the pipeline builds with
func (p *Pipeline) Backend() backend.Backend {
	return p.backend
}

// Discover finds the project's units and headers
func (p *Pipeline) Discover() (*unit.Container, error) {
	skip := []string{p.cfg.OutputDir}
	if p.cfg.StoreDir != "" {
		skip = append(skip, p.cfg.StoreDir)
	}

	units, headers, err := unit.Discover(p.cfg.ProjectDir, unit.DiscoverOptions{
		Exclude:  p.cfg.Exclude,
		SkipDirs: skip,
	})
	if err != nil {
		return nil, err
	}

	c := unit.Project(units)
	c.Headers = headers

	return c, nil
}

// Build compiles the container's units and links the module.
// Failures are reported through the result, never as a panic or error return.
func (p *Pipeline) Build(ctx context.Context, c *unit.Container) *backend.BuildResult {
	buildID := uuid.NewString()
	start := time.Now()

	log.Infof("build %s: %d units with %s", buildID, len(c.Targets()), p.backend.Name())

	res := p.build(ctx, c, buildID)
	res.BuildID = buildID

	if res.Success {
		log.Infof("build %s succeeded in %s", buildID, time.Since(start).Round(time.Millisecond))
	} else {
		log.Errorf("build %s failed: %s", buildID, res.Code)
	}

	return res
}

// Stop cancels compilations that have not started
func (p *Pipeline) Stop() {
	p.sched.Stop()
}

func (p *Pipeline) build(ctx context.Context, c *unit.Container, buildID string) *backend.BuildResult {
	b := p.backend

	if !b.Initialize(p.cfg.Instance) {
		return failure(codes.SettingsInvalid, "an instance name is required")
	}

	keys := make([]string, 0, len(p.cfg.Options))
	for k := range p.cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := b.SetOption(k, p.cfg.Options[k]); err != nil {
			return failure(codes.SettingsInvalid, err.Error())
		}
	}

	s := backend.NewSettings(p.cfg)
	if err := b.SolveSettings(s); err != nil {
		return fromError(err, codes.SettingsInvalid)
	}

	ledger, err := cache.Load(p.cfg.CacheFile)
	if err != nil {
		if errors.Is(err, cache.ErrCorrupt) {
			return failure(codes.CacheParse, err.Error())
		}

		return failure(codes.CacheWrite, err.Error())
	}

	headers := trackedHeaders(p.cfg, c.Headers)
	if ledger.HeadersChanged(headers) {
		log.Info("headers or build settings changed, recompiling every unit")
		ledger.InvalidateAll()
	}

	s.Cache = ledger
	s.Headers = headers

	objectExt := b.Options().ObjectExt
	for _, u := range c.Linkable() {
		u.AssignPaths(s.OutputDir, objectExt)
	}

	pre := preprocess.New(preprocess.Settings{
		Backend: b.Name(),
		Defines: p.cfg.Defines,
		Debug:   p.cfg.Debug,
	})

	for _, u := range c.Targets() {
		if _, err := pre.Run(u); err != nil {
			return failure(codes.Preprocess, err.Error())
		}

		ledger.AddProxy(filepath.Base(u.CachePath), u.SourcePath)
	}

	compiled := b.CompileUnits(ctx, c, s)
	if compiled.HasError {
		return &backend.BuildResult{
			HasError: true,
			Code:     compiled.Code,
			Error:    compiled.Message + "\n" + compiled.Errors,
			Warnings: compiled.Warnings,
			Verbose:  compiled.Verbose,
			Backend:  b.Name(),
			Family:   b.Family(),
			Debug:    s.Debug,
			Compile:  compiled,
		}
	}

	var res *backend.BuildResult
	if compiled.ScriptsCount == 0 && ledger.Covers(c.Linkable()) {
		res = p.reuse(b, s)
	}

	if res == nil {
		res = b.Link(ctx, c.Linkable(), s)
		if res.HasError {
			res.Compile = compiled
			return res
		}

		if err := p.writeArtifacts(res); err != nil {
			return failure(codes.EnvelopeFailed, err.Error())
		}
	}

	res.Compile = compiled
	res.BuildID = buildID
	res.Warnings = compiled.Warnings + res.Warnings

	if p.cfg.StoreDir != "" {
		if err := p.store(res); err != nil {
			log.Warningf("failed to store module: %v", err)
		}
	}

	return res
}

// reuse returns the previous module when it and its sidecar exist.
// Callers check the ledger still records exactly the linked units.
func (p *Pipeline) reuse(b backend.Backend, s *backend.Settings) *backend.BuildResult {
	out := b.Outputs(s)

	module, err := os.ReadFile(out.Module)
	if err != nil || len(module) == 0 {
		return nil
	}

	data, err := os.ReadFile(out.Module + metadata.SidecarExt)
	if err != nil {
		return nil
	}

	table, err := metadata.Decode(data)
	if err != nil {
		log.Warningf("previous metadata is unreadable, relinking: %v", err)
		return nil
	}

	log.Infof("nothing compiled, reusing %s", filepath.Base(out.Module))

	return &backend.BuildResult{
		Success:    true,
		Module:     module,
		Metadata:   data,
		Table:      table,
		ModulePath: out.Module,
		MapPath:    out.Map,
		OutputDir:  s.OutputDir,
		Backend:    b.Name(),
		Family:     b.Family(),
		Debug:      s.Debug,
		Reused:     true,
	}
}

// writeArtifacts writes the metadata sidecar and the module database file
func (p *Pipeline) writeArtifacts(res *backend.BuildResult) error {
	if err := os.WriteFile(res.ModulePath+metadata.SidecarExt, res.Metadata, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return moddb.WriteFile(res.ModulePath+EnvelopeExt, res.Module, res.Metadata, cacheType(res.Family))
}

// store records the module in the module database
func (p *Pipeline) store(res *backend.BuildResult) error {
	envelope, err := moddb.Encode(res.Module, res.Metadata, cacheType(res.Family))
	if err != nil {
		return err
	}

	st, err := moddb.Open(p.cfg.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()

	module := filepath.Base(res.ModulePath)
	entry, err := st.Put(moddb.Entry{
		Key:     moddb.Key(res.Backend, module, res.Debug),
		Module:  module,
		Backend: res.Backend,
		Debug:   res.Debug,
		BuildID: res.BuildID,
	}, envelope)
	if err != nil {
		return err
	}

	log.Debugf("stored %s as %s", entry.Key, entry.Hash)

	return nil
}

func cacheType(f backend.Family) moddb.CacheType {
	if f == backend.FamilyProprietary {
		return moddb.CacheProprietary
	}

	return moddb.CacheOpen
}

func failure(code, detail string) *backend.BuildResult {
	return &backend.BuildResult{
		HasError: true,
		Code:     code,
		Error:    codes.New(code, detail).Error(),
	}
}

// fromError keeps the code of a tagged error, tagging others with fallback
func fromError(err error, fallback string) *backend.BuildResult {
	var tagged *codes.Error
	if errors.As(err, &tagged) {
		return &backend.BuildResult{HasError: true, Code: tagged.Code, Error: tagged.Error()}
	}

	return failure(fallback, err.Error())
}
