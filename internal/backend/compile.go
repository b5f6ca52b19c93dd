package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/spbuild/internal/codes"
	"github.com/Norgate-AV/spbuild/internal/diag"
	"github.com/Norgate-AV/spbuild/internal/process"
	"github.com/Norgate-AV/spbuild/internal/scheduler"
	"github.com/Norgate-AV/spbuild/internal/unit"
)

// job is one unit's compiler invocation
type job struct {
	unit *unit.Unit
	cmd  process.Command
}

// outcome is the observed result of a job
type outcome struct {
	output   string
	exitCode int
	err      error
}

func (b *compilerBackend) CompileUnits(ctx context.Context, c *unit.Container, s *Settings) *CompileResult {
	if !b.Features().Has(FeatureCompileFromFile) {
		return compileFailure(codes.CompileNotSupport, b.name)
	}

	if err := b.requireSolved(); err != nil {
		return compileFailure(codes.SettingsInvalid, err.Error())
	}

	targets := c.Targets()
	pending := targets
	if s.Cache != nil && !s.NoCache {
		pending = s.Cache.Pending(targets)
	}

	if len(pending) == 0 {
		log.Info("no units required compilation")

		return &CompileResult{
			Success: true,
			Verbose: "No units required compilation, the build cache is up to date\n",
		}
	}

	jobs := make([]job, 0, len(pending))
	for _, u := range pending {
		if u.ObjectPath == "" {
			u.AssignPaths(s.OutputDir, b.opts.ObjectExt)
		}

		src := u.CachePath
		if src == "" {
			src = u.SourcePath
		}

		jobs = append(jobs, job{
			unit: u,
			cmd: process.Command{
				Path: b.opts.Compiler,
				Args: b.dialect.compileArgs(b.opts, s, src, u.ObjectPath),
				Dir:  s.ProjectDir,
			},
		})
	}

	if err := os.MkdirAll(filepath.Join(s.OutputDir, "obj"), 0o755); err != nil {
		return compileFailure(codes.CompileSpawn, fmt.Sprintf("failed to create object directory: %v", err))
	}

	if s.DevMode {
		cmds := make([]process.Command, len(jobs))
		for i, j := range jobs {
			cmds[i] = j.cmd
		}

		dumpCommands(s.OutputDir, compilerDump, cmds)
	}

	proxies := proxyMap(c.All, s)
	report := &diag.Report{}
	report.AddVerbose(fmt.Sprintf("Compiling %d of %d units with %s", len(jobs), len(targets), b.name))

	var outcomes []outcome
	if b.opts.Stream {
		outcomes = b.compileStreamed(ctx, jobs, report, proxies)
	} else {
		outcomes = b.compileScheduled(ctx, jobs, report, proxies)
	}

	res := &CompileResult{ScriptsCount: len(jobs)}
	failed := 0

	// collect every unit's outcome before deciding on the result
	for i, o := range outcomes {
		u := jobs[i].unit

		switch {
		case o.err != nil:
			failed++
			report.AddError(codes.Newf(codes.CompileSpawn, "%s: %v", u.Name, o.err).Error())
		case o.exitCode != 0:
			failed++
			log.Debugf("%s exited with code %d", u.Name, o.exitCode)
		default:
			if s.Cache != nil {
				s.Cache.Record(u)
			}

			res.Compiled = append(res.Compiled, u)
			res.Objects = append(res.Objects, u.ObjectPath)
		}
	}

	res.Errors = report.Errors()
	res.Warnings = report.Warnings()
	res.Verbose = report.Verbose()
	res.Diagnostics = report.Diagnostics

	if failed > 0 {
		res.HasError = true
		res.Code = codes.CompileErrors
		res.Message = codes.Newf(codes.CompileErrors, "%d of %d units failed", failed, len(jobs)).Error()
		return res
	}

	res.Success = true

	return res
}

// compileStreamed runs jobs one after another, classifying output as it arrives
func (b *compilerBackend) compileStreamed(ctx context.Context, jobs []job, report *diag.Report, proxies map[string]string) []outcome {
	outcomes := make([]outcome, len(jobs))

	for i, j := range jobs {
		res, err := b.deps.Runner.Stream(ctx, j.cmd, func(line string) {
			if line != "" {
				report.AddLine(line, proxies)
			}
		})
		if err != nil {
			outcomes[i] = outcome{exitCode: -1, err: err}
			continue
		}

		outcomes[i] = outcome{exitCode: res.ExitCode}
	}

	return outcomes
}

// compileScheduled runs one process per job through the scheduler and joins all of them
func (b *compilerBackend) compileScheduled(ctx context.Context, jobs []job, report *diag.Report, proxies map[string]string) []outcome {
	sched := b.scheduler()
	outcomes := make([]outcome, len(jobs))
	tasks := make([]*scheduler.Task, len(jobs))

	for i, j := range jobs {
		cmd := j.cmd
		t, err := sched.Submit(ctx, j.unit.Name, func(ctx context.Context) (string, int, error) {
			res, err := b.deps.Runner.Run(ctx, cmd)
			if err != nil {
				return "", -1, err
			}

			return res.Output, res.ExitCode, nil
		})
		if err != nil {
			outcomes[i] = outcome{exitCode: -1, err: err}
			continue
		}

		tasks[i] = t
	}

	for i, t := range tasks {
		if t == nil {
			continue
		}

		r := t.Wait()
		sched.Clear(t)

		report.Add(r.Output, proxies)
		outcomes[i] = outcome{output: r.Output, exitCode: r.ExitCode, err: r.Err}
	}

	return outcomes
}

func (b *compilerBackend) scheduler() *scheduler.Scheduler {
	if b.deps.Scheduler == nil {
		b.deps.Scheduler = scheduler.New(0)
	}

	return b.deps.Scheduler
}

func (b *compilerBackend) CompileSource(ctx context.Context, source string, s *Settings) *CompileResult {
	if !b.Features().Has(FeatureCompileFromSource) {
		return compileFailure(codes.CompileNotSupport, "compile from source is not supported by "+b.name)
	}

	if err := b.requireSolved(); err != nil {
		return compileFailure(codes.SettingsInvalid, err.Error())
	}

	dir := filepath.Join(s.OutputDir, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return compileFailure(codes.CompileSpawn, fmt.Sprintf("failed to create cache directory: %v", err))
	}

	f, err := os.CreateTemp(dir, "source-*.cpp")
	if err != nil {
		return compileFailure(codes.CompileSpawn, fmt.Sprintf("failed to create temp file: %v", err))
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(source); err != nil {
		f.Close()
		return compileFailure(codes.CompileSpawn, fmt.Sprintf("failed to write temp file: %v", err))
	}
	f.Close()

	u := unit.FromSource(f.Name(), source)
	u.CachePath = f.Name()
	// every source compile replaces the same object
	u.ObjectPath = filepath.Join(s.OutputDir, "obj", "source"+b.opts.ObjectExt)

	settings := *s
	settings.Cache = nil

	return b.CompileUnits(ctx, unit.Project([]*unit.Unit{u}), &settings)
}

// proxyMap maps generated file names to the user's source paths
func proxyMap(units []*unit.Unit, s *Settings) map[string]string {
	proxies := map[string]string{}
	for _, u := range units {
		if u.CachePath != "" {
			proxies[filepath.Base(u.CachePath)] = u.SourcePath
		}
	}

	if s.Cache != nil {
		for k, v := range s.Cache.Proxies() {
			proxies[k] = v
		}
	}

	return proxies
}
