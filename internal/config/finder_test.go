package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLocalConfig(t *testing.T) {
	// Create a temporary directory structure
	tempDir := t.TempDir()
	subDir := filepath.Join(tempDir, "subdir")
	err := os.Mkdir(subDir, 0o755)
	require.NoError(t, err)

	// Create config files
	configYML := filepath.Join(subDir, ".spbuild.yml")
	err = os.WriteFile(configYML, []byte("backend: clang"), 0o644)
	require.NoError(t, err)

	// Test finding in subdir
	result := FindLocalConfig(subDir)
	assert.Equal(t, configYML, result)

	// Test finding in parent
	result = FindLocalConfig(filepath.Join(subDir, "deep"))
	assert.Equal(t, configYML, result)

	// Test not found
	result = FindLocalConfig(tempDir)
	assert.Equal(t, "", result)
}

func TestFindGlobalConfig(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", FindGlobalConfig(dir))

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`backend = "gcc"`), 0o644))
	assert.Equal(t, tomlPath, FindGlobalConfig(dir))

	// yml wins over toml
	ymlPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("backend: gcc"), 0o644))
	assert.Equal(t, ymlPath, FindGlobalConfig(dir))
}
