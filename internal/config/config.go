package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/Norgate-AV/spbuild/internal/toolchain"
	"github.com/Norgate-AV/spbuild/internal/utils"
	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultInstance   = "spbuild"
	DefaultModuleName = "ScriptModule"
	DefaultOutputDir  = ".spbuild/build"
	DefaultStoreDir   = ".spbuild/store"
	DefaultCacheFile  = "BuildCache.json"
	DefaultWorkers    = 0
	DefaultDebug      = false
	DefaultDevMode    = false
	DefaultVerbose    = false
)

// Backends lists the compiler backends that can be selected
var Backends = []string{"msvc", "clang-cl", "gcc", "clang"}

// DefaultBackend returns the backend used when none is configured
func DefaultBackend() string {
	if runtime.GOOS == "windows" {
		return "msvc"
	}

	return "gcc"
}

// Holds the configuration options for spbuild
type Config struct {
	// Project directory containing the script sources
	ProjectDir string

	// Compiler backend name (msvc, clang-cl, gcc, clang)
	Backend string
	// Instance name handed to the backend on initialization
	Instance string

	// Root directory of installed packages
	PackagesRoot string
	// Toolchain and SDK package identities, empty selects the backend default
	Toolchain string
	SDK       string

	// User preprocessor definitions, ';' delimited
	Defines string

	// Build output directory
	OutputDir string
	// Base name of the produced module
	ModuleName string
	// Target machine architecture
	Machine utils.Machine

	// Produce a debug artifact with debug information
	Debug bool
	// Dump synthesized command lines into the output directory
	DevMode bool
	// Maximum concurrent compiler processes, 0 selects the CPU count
	Workers int

	// Build cache ledger path
	CacheFile string
	// Ignore the build cache and recompile every unit
	NoCache bool

	// Module store directory, empty disables the store
	StoreDir string

	// Glob patterns of scripts excluded from the build
	Exclude []string

	// Backend option overrides applied after initialization
	Options map[string]string

	// Enable verbose output
	Verbose bool
}

func Load() (*Config, error) {
	cfg := &Config{
		ProjectDir:   viper.GetString("project_dir"),
		Backend:      viper.GetString("backend"),
		Instance:     viper.GetString("instance"),
		PackagesRoot: viper.GetString("packages_root"),
		Toolchain:    viper.GetString("toolchain"),
		SDK:          viper.GetString("sdk"),
		Defines:      viper.GetString("defines"),
		OutputDir:    viper.GetString("output_dir"),
		ModuleName:   viper.GetString("module_name"),
		Debug:        viper.GetBool("debug"),
		DevMode:      viper.GetBool("dev_mode"),
		Workers:      viper.GetInt("workers"),
		CacheFile:    viper.GetString("cache_file"),
		NoCache:      viper.GetBool("no_cache"),
		StoreDir:     viper.GetString("store_dir"),
		Exclude:      viper.GetStringSlice("exclude"),
		Options:      viper.GetStringMapString("options"),
		Verbose:      viper.GetBool("verbose"),
	}

	machine, ok := utils.ParseMachine(viper.GetString("machine"))
	if !ok {
		return nil, fmt.Errorf("invalid machine: %s", viper.GetString("machine"))
	}

	cfg.Machine = machine

	// Apply defaults if not set
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend()
	}

	if cfg.Instance == "" {
		cfg.Instance = DefaultInstance
	}

	if cfg.ModuleName == "" {
		cfg.ModuleName = DefaultModuleName
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		c.ProjectDir = "."
	}

	abs, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("invalid project directory: %v", err)
	}

	c.ProjectDir = abs

	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("invalid backend: %s", c.Backend)
	}

	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}

	// Resolve paths relative to the project
	if c.OutputDir != "" {
		c.OutputDir = toolchain.Globalize(c.ProjectDir, c.OutputDir)
	}

	if c.CacheFile == "" {
		c.CacheFile = filepath.Join(c.OutputDir, DefaultCacheFile)
	} else {
		c.CacheFile = toolchain.Globalize(c.ProjectDir, c.CacheFile)
	}

	if c.StoreDir != "" {
		c.StoreDir = toolchain.Globalize(c.ProjectDir, c.StoreDir)
	}

	if c.PackagesRoot != "" {
		c.PackagesRoot = toolchain.Globalize(c.ProjectDir, c.PackagesRoot)
	}

	return nil
}
