package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/spbuild/internal/cache"
	"github.com/Norgate-AV/spbuild/internal/config"
	"github.com/Norgate-AV/spbuild/internal/metadata"
	"github.com/Norgate-AV/spbuild/internal/moddb"
	"github.com/Norgate-AV/spbuild/internal/pipeline"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the build cache and module store",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats [project-dir]",
	Short:        "Show build cache and module store statistics",
	RunE:         runCacheStats,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear [project-dir]",
	Short:        "Remove the build cache, intermediate files and stored modules",
	RunE:         runCacheClear,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

var cacheListCmd = &cobra.Command{
	Use:          "list [project-dir]",
	Short:        "List stored modules",
	RunE:         runCacheList,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

var cacheRestoreCmd = &cobra.Command{
	Use:          "restore <key> [project-dir]",
	Short:        "Restore a stored module and its metadata",
	RunE:         runCacheRestore,
	SilenceUsage: true,
	Args:         cobra.RangeArgs(1, 2),
}

func init() {
	cacheRestoreCmd.Flags().String("dest", "", "Destination directory (defaults to the output directory)")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheRestoreCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("Build cache"))

	if _, err := os.Stat(cfg.CacheFile); err != nil {
		fmt.Fprintf(out, "  %s\n", mutedStyle.Render("no build cache at "+cfg.CacheFile))
	} else {
		ledger, err := cache.Load(cfg.CacheFile)
		if err != nil {
			return err
		}

		rec := ledger.Snapshot()
		headers := rec.HeaderCount
		if _, ok := rec.Headers[pipeline.SettingsIdentity]; ok {
			headers--
		}

		fmt.Fprintf(out, "  Path: %s\n  Units: %d\n  Headers: %d\n  Proxies: %d\n", cfg.CacheFile, len(rec.Modules), headers, len(rec.Proxies))
	}

	if cfg.StoreDir == "" {
		return nil
	}

	st, err := moddb.Open(cfg.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()

	count, size, err := st.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, headerStyle.Render("Module store"))
	fmt.Fprintf(out, "  Path: %s\n  Modules: %d\n  Size: %d bytes\n", cfg.StoreDir, count, size)

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	for _, path := range []string{cfg.CacheFile, filepath.Join(cfg.OutputDir, "cache"), filepath.Join(cfg.OutputDir, "obj")} {
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	if cfg.StoreDir != "" {
		if _, err := os.Stat(cfg.StoreDir); err == nil {
			st, err := moddb.Open(cfg.StoreDir)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Clear(); err != nil {
				return fmt.Errorf("failed to clear module store: %w", err)
			}
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Cache cleared"))

	return nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.StoreDir == "" {
		return fmt.Errorf("no module store configured")
	}

	st, err := moddb.Open(cfg.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List()
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	out := cmd.OutOrStdout()
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  %d bytes  %s\n", e.Key, e.CacheType, e.ModuleSize, mutedStyle.Render(e.Timestamp.Format("2006-01-02 15:04:05")))
	}

	return nil
}

func runCacheRestore(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args[1:])
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.StoreDir == "" {
		return fmt.Errorf("no module store configured")
	}

	st, err := moddb.Open(cfg.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()

	entry, err := st.Get(args[0])
	if err != nil {
		return err
	}

	if entry == nil {
		return fmt.Errorf("no stored module %s", args[0])
	}

	dest, _ := cmd.Flags().GetString("dest")
	if dest == "" {
		dest = cfg.OutputDir
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	modulePath, metadataPath, err := st.Restore(entry, dest, metadata.SidecarExt)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n%s\n", successStyle.Render("Restored "), modulePath, mutedStyle.Render(metadataPath))

	return nil
}
