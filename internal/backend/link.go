package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/spbuild/internal/codes"
	"github.com/Norgate-AV/spbuild/internal/diag"
	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/process"
	"github.com/Norgate-AV/spbuild/internal/unit"
)

func (b *compilerBackend) Link(ctx context.Context, units []*unit.Unit, s *Settings) *BuildResult {
	if !b.Features().Has(FeatureLinkObjects) {
		return buildFailure(codes.LinkNotSupport, b.name)
	}

	if err := b.requireSolved(); err != nil {
		return buildFailure(codes.SettingsInvalid, err.Error())
	}

	var linkable []*unit.Unit
	for _, u := range units {
		if u.Buildable() {
			linkable = append(linkable, u)
		}
	}

	if len(linkable) == 0 {
		return buildFailure(codes.NothingToLink, "no units")
	}

	objects := make([]string, 0, len(linkable))
	for _, u := range linkable {
		if _, err := os.Stat(u.ObjectPath); err != nil {
			return buildFailure(codes.NothingToLink, fmt.Sprintf("missing object for %s", u.Name))
		}

		objects = append(objects, u.ObjectPath)
	}

	out := b.Outputs(s)
	cmd := process.Command{
		Path: b.opts.Linker,
		Args: b.dialect.linkArgs(b.opts, s, objects, b.addons, out),
		Dir:  s.ProjectDir,
	}

	if s.DevMode {
		dumpCommands(s.OutputDir, linkerDump, []process.Command{cmd})
	}

	if err := os.MkdirAll(filepath.Dir(out.Module), 0o755); err != nil {
		return buildFailure(codes.LinkSpawn, fmt.Sprintf("failed to create output directory: %v", err))
	}

	log.Infof("linking %d objects into %s", len(objects), filepath.Base(out.Module))

	res, err := b.deps.Runner.Run(ctx, cmd)
	if err != nil {
		return buildFailure(codes.LinkSpawn, err.Error())
	}

	report := diag.Collect(res.Output, proxyMap(units, s))
	if !res.Success() {
		r := buildFailure(codes.LinkErrors, fmt.Sprintf("linker exited with code %d", res.ExitCode))
		r.Error += "\n" + report.Errors()
		r.Warnings = report.Warnings()
		r.Verbose = report.Verbose()
		return r
	}

	module, err := os.ReadFile(out.Module)
	if err != nil {
		return buildFailure(codes.ModuleRead, err.Error())
	}

	if len(module) == 0 {
		return buildFailure(codes.EmptyModule, out.Module)
	}

	table, err := b.generate(ctx, linkable, out)
	if err != nil {
		if errors.Is(err, metadata.ErrEmpty) {
			return buildFailure(codes.EmptyMetadata, filepath.Base(out.Module))
		}

		return buildFailure(codes.MetadataFailed, err.Error())
	}

	data, err := table.Marshal()
	if err != nil {
		return buildFailure(codes.MetadataFailed, err.Error())
	}

	if s.Cache != nil {
		if err := s.Cache.Commit(units, s.Headers, ""); err != nil {
			return buildFailure(codes.CacheCommit, err.Error())
		}
	}

	return &BuildResult{
		Success:    true,
		Warnings:   report.Warnings(),
		Verbose:    report.Verbose(),
		Module:     module,
		Metadata:   data,
		Table:      table,
		ModulePath: out.Module,
		MapPath:    out.Map,
		OutputDir:  s.OutputDir,
		Backend:    b.name,
		Family:     b.Family(),
		Debug:      s.Debug,
	}
}

func (b *compilerBackend) GenerateMetadata(ctx context.Context, units []*unit.Unit, s *Settings) (*metadata.Table, error) {
	if !b.Features().Has(FeatureGenerateMappingData) {
		return nil, codes.New(codes.LinkNotSupport, "metadata generation is not supported by "+b.name)
	}

	return b.generate(ctx, units, b.Outputs(s))
}

func (b *compilerBackend) generate(ctx context.Context, units []*unit.Unit, out Outputs) (*metadata.Table, error) {
	symbols, demangler, err := b.dialect.symbols(ctx, b, out)
	if err != nil {
		return nil, err
	}

	return metadata.Generate(ctx, filepath.Base(out.Module), b.name, symbols, units, demangler)
}
