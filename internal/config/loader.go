package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct {
	// globalDir overrides the user config directory, used by tests
	globalDir string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration specifically for build operations
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(args)
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("backend", DefaultBackend())
	viper.SetDefault("instance", DefaultInstance)
	viper.SetDefault("module_name", DefaultModuleName)
	viper.SetDefault("output_dir", DefaultOutputDir)
	viper.SetDefault("store_dir", DefaultStoreDir)
	viper.SetDefault("workers", DefaultWorkers)
	viper.SetDefault("debug", DefaultDebug)
	viper.SetDefault("dev_mode", DefaultDevMode)
	viper.SetDefault("verbose", DefaultVerbose)

	if dir := l.userConfigDir(); dir != "" {
		viper.SetDefault("packages_root", filepath.Join(dir, "packages"))
	}
}

// userConfigDir returns the spbuild directory under the user config dir
func (l *Loader) userConfigDir() string {
	if l.globalDir != "" {
		return l.globalDir
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(base, "spbuild")
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	dir := l.userConfigDir()
	if dir == "" {
		return
	}

	if path := FindGlobalConfig(dir); path != "" {
		viper.SetConfigFile(path)
		_ = viper.ReadInConfig()
	}
}

// loadLocalConfig loads local configuration from project directory
func (l *Loader) loadLocalConfig(args []string) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	if info, err := os.Stat(absDir); err == nil && !info.IsDir() {
		absDir = filepath.Dir(absDir)
	}

	viper.Set("project_dir", absDir)

	localPath := FindLocalConfig(absDir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for _, name := range []string{"backend", "toolchain", "sdk", "defines", "output_dir", "machine", "workers", "debug", "dev_mode", "no_cache", "verbose"} {
		if flag := cmd.Flags().Lookup(flagName(name)); flag != nil {
			_ = viper.BindPFlag(name, flag)
		}
	}
}

// flagName maps a config key to its command-line flag
func flagName(key string) string {
	switch key {
	case "output_dir":
		return "out"
	case "dev_mode":
		return "dev"
	case "no_cache":
		return "no-cache"
	}

	return key
}
