package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/Norgate-AV/spbuild/internal/version"
)

var rootCmd = &cobra.Command{
	Use:              "spbuild [project-dir | script]",
	Short:            "Script module build pipeline",
	Long:             `Compile script sources into a native module that can be hot-reloaded into a running host`,
	RunE:             runBuild,
	SilenceUsage:     true,
	Args:             cobra.MaximumNArgs(1),
	PersistentPreRun: configureLogging,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().StringP("backend", "b", "", "Compiler backend (msvc, clang-cl, gcc, clang)")
	rootCmd.PersistentFlags().String("toolchain", "", "Toolchain package overriding the backend default")
	rootCmd.PersistentFlags().String("sdk", "", "SDK package overriding the backend default")
	rootCmd.PersistentFlags().StringP("defines", "D", "", "Preprocessor definitions, ';' delimited")
	rootCmd.PersistentFlags().StringP("out", "o", "", "Build output directory")
	rootCmd.PersistentFlags().StringP("machine", "m", "", "Target machine (x64, x86, arm64)")
	rootCmd.PersistentFlags().IntP("workers", "j", 0, "Maximum concurrent compiler processes")
	rootCmd.PersistentFlags().BoolP("debug", "g", false, "Build a debug module")
	rootCmd.PersistentFlags().Bool("dev", false, "Dump synthesized command lines into the output directory")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable build cache")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.Flags().Bool("load", false, "Validate the built module through the loader")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(unpackCmd)
	rootCmd.AddCommand(symbolsCmd)
}

// configureLogging routes pipeline logging to stderr: notices and above by
// default, everything with --verbose
func configureLogging(cmd *cobra.Command, args []string) {
	verbosity := 3
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		verbosity = 5
	}

	commonlog.Configure(verbosity, nil)
}
