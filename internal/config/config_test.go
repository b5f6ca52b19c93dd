package config

import (
	"path/filepath"
	"testing"

	"github.com/Norgate-AV/spbuild/internal/utils"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	projectDir := t.TempDir()

	tests := []struct {
		name        string
		setupViper  func()
		check       func(t *testing.T, cfg *Config)
		wantErr     bool
		errContains string
	}{
		{
			name: "load with all defaults",
			setupViper: func() {
				viper.Reset()
				viper.Set("project_dir", projectDir)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, projectDir, cfg.ProjectDir)
				assert.Equal(t, DefaultBackend(), cfg.Backend)
				assert.Equal(t, DefaultInstance, cfg.Instance)
				assert.Equal(t, DefaultModuleName, cfg.ModuleName)
				assert.Equal(t, filepath.Join(projectDir, ".spbuild", "build"), cfg.OutputDir)
				assert.Equal(t, filepath.Join(projectDir, ".spbuild", "build", DefaultCacheFile), cfg.CacheFile)
				assert.Equal(t, utils.HostMachine(), cfg.Machine)
				assert.Empty(t, cfg.StoreDir)
			},
		},
		{
			name: "load with custom values",
			setupViper: func() {
				viper.Reset()
				viper.Set("project_dir", projectDir)
				viper.Set("backend", "clang")
				viper.Set("output_dir", "out")
				viper.Set("cache_file", "ledger.json")
				viper.Set("store_dir", "store")
				viper.Set("machine", "aarch64")
				viper.Set("defines", "FOO=1;BAR")
				viper.Set("workers", 3)
				viper.Set("debug", true)
				viper.Set("exclude", []string{"old/*.cpp"})
				viper.Set("options", map[string]string{"std": "c++17"})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "clang", cfg.Backend)
				assert.Equal(t, filepath.Join(projectDir, "out"), cfg.OutputDir)
				assert.Equal(t, filepath.Join(projectDir, "ledger.json"), cfg.CacheFile)
				assert.Equal(t, filepath.Join(projectDir, "store"), cfg.StoreDir)
				assert.Equal(t, utils.MachineARM64, cfg.Machine)
				assert.Equal(t, "FOO=1;BAR", cfg.Defines)
				assert.Equal(t, 3, cfg.Workers)
				assert.True(t, cfg.Debug)
				assert.Equal(t, []string{"old/*.cpp"}, cfg.Exclude)
				assert.Equal(t, "c++17", cfg.Options["std"])
			},
		},
		{
			name: "invalid backend",
			setupViper: func() {
				viper.Reset()
				viper.Set("project_dir", projectDir)
				viper.Set("backend", "tcc")
			},
			wantErr:     true,
			errContains: "invalid backend",
		},
		{
			name: "invalid machine",
			setupViper: func() {
				viper.Reset()
				viper.Set("project_dir", projectDir)
				viper.Set("machine", "sparc")
			},
			wantErr:     true,
			errContains: "invalid machine",
		},
		{
			name: "negative workers",
			setupViper: func() {
				viper.Reset()
				viper.Set("project_dir", projectDir)
				viper.Set("workers", -2)
			},
			wantErr:     true,
			errContains: "invalid worker count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupViper()

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidate_DefaultsProjectDir(t *testing.T) {
	cfg := &Config{Backend: "gcc", OutputDir: "build"}
	require.NoError(t, cfg.Validate())

	abs, _ := filepath.Abs(".")
	assert.Equal(t, abs, cfg.ProjectDir)
	assert.Equal(t, filepath.Join(abs, "build"), cfg.OutputDir)
}
