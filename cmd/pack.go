package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/moddb"
	"github.com/Norgate-AV/spbuild/internal/pipeline"
)

var packCmd = &cobra.Command{
	Use:          "pack <module> [metadata]",
	Short:        "Package a module and its metadata into a module database file",
	RunE:         runPack,
	SilenceUsage: true,
	Args:         cobra.RangeArgs(1, 2),
}

var unpackCmd = &cobra.Command{
	Use:          "unpack <file.spdb>",
	Short:        "Extract the module and metadata from a module database file",
	RunE:         runUnpack,
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
}

func init() {
	packCmd.Flags().StringP("out", "o", "", "Output file (defaults to <module>"+pipeline.EnvelopeExt+")")
	packCmd.Flags().String("family", "open", "Toolchain family of the module (open, proprietary)")
	unpackCmd.Flags().StringP("out", "o", "", "Output directory (defaults to the file's directory)")
}

func runPack(cmd *cobra.Command, args []string) error {
	module := args[0]
	meta := module + metadata.SidecarExt
	if len(args) == 2 {
		meta = args[1]
	}

	family, _ := cmd.Flags().GetString("family")
	cacheType, err := parseFamily(family)
	if err != nil {
		return err
	}

	moduleData, err := os.ReadFile(module)
	if err != nil {
		return fmt.Errorf("failed to read module: %w", err)
	}

	metaData, err := os.ReadFile(meta)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	if _, err := metadata.Decode(metaData); err != nil {
		return fmt.Errorf("invalid metadata %s: %w", meta, err)
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = module + pipeline.EnvelopeExt
	}

	if err := moddb.WriteFile(out, moduleData, metaData, cacheType); err != nil {
		return err
	}

	env, err := moddb.ReadFile(out)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s%s (%d bytes, ratio %.2f)\n", successStyle.Render("Packed "), out, env.Header.PayloadSize, env.Header.Ratio)

	return nil
}

func runUnpack(cmd *cobra.Command, args []string) error {
	env, err := moddb.ReadFile(args[0])
	if err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("out")
	if dir == "" {
		dir = filepath.Dir(args[0])
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	module := filepath.Join(dir, strings.TrimSuffix(filepath.Base(args[0]), pipeline.EnvelopeExt))
	if err := os.WriteFile(module, env.Module, 0o755); err != nil {
		return fmt.Errorf("failed to write module: %w", err)
	}

	if err := os.WriteFile(module+metadata.SidecarExt, env.Metadata, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s%s (%s)\n", successStyle.Render("Unpacked "), module, env.Header.CacheType)

	return nil
}

func parseFamily(family string) (moddb.CacheType, error) {
	switch strings.ToLower(family) {
	case "open":
		return moddb.CacheOpen, nil
	case "proprietary":
		return moddb.CacheProprietary, nil
	}

	return 0, fmt.Errorf("invalid family: %s", family)
}
