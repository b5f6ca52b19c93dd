package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/spbuild/internal/config"
	"github.com/Norgate-AV/spbuild/internal/loader"
	"github.com/Norgate-AV/spbuild/internal/pipeline"
	"github.com/Norgate-AV/spbuild/internal/unit"
)

var buildCmd = &cobra.Command{
	Use:          "build [project-dir | script]",
	Short:        "Build the script module",
	Long:         `Preprocess, compile and link the project's scripts into one native module. Given a single script, only that script is recompiled.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func init() {
	buildCmd.Flags().Bool("load", false, "Validate the built module through the loader")
}

// newPipeline creates the build pipeline, tests swap in fakes
var newPipeline = func(cfg *config.Config) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg, pipeline.Deps{})
}

// newOpener creates the native module opener, tests swap in fakes
var newOpener = func() loader.Opener {
	return loader.NativeOpener{}
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	c, err := p.Discover()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		c, err = selectTargets(c, args[0])
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		printBuildInfo(out, cfg, c)
	}

	res := p.Build(ctx, c)
	printResult(out, res, cfg.Verbose)

	if res.HasError {
		return fmt.Errorf("build failed with %s", res.Code)
	}

	if load, _ := cmd.Flags().GetBool("load"); load {
		return validateModule(out, res.ModulePath)
	}

	return nil
}

// selectTargets narrows the container to one script when arg names a script file
func selectTargets(c *unit.Container, arg string) (*unit.Container, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return c, nil
	}

	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	u := c.Find(unit.Identity(abs))
	if u == nil {
		return nil, fmt.Errorf("%s is not a script of this project", arg)
	}

	single := unit.Single(u, c.All)
	single.Headers = c.Headers

	return single, nil
}

func validateModule(out io.Writer, path string) error {
	ctrl := loader.New(newOpener(), nil, loader.Options{})
	defer ctrl.Close()

	if err := ctrl.Validate(path); err != nil {
		return err
	}

	fmt.Fprintln(out, successStyle.Render("Module loads: ")+filepath.Base(path))

	return nil
}

// printBuildInfo prints verbose build information
func printBuildInfo(w io.Writer, cfg *config.Config, c *unit.Container) {
	names := make([]string, 0, len(c.Targets()))
	for _, u := range c.Targets() {
		names = append(names, u.Name)
	}

	fmt.Fprintf(w, "Backend: %s\nMachine: %s\nProject: %s\nOutput: %s\nDebug: %t\nUnits: %s\n",
		cfg.Backend, cfg.Machine, cfg.ProjectDir, cfg.OutputDir, cfg.Debug, strings.Join(names, ", "))
}
