package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackage(t *testing.T, root string, kind Kind, id, body string) string {
	t.Helper()

	dir := filepath.Join(root, string(kind), id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte(body), 0o644))

	return dir
}

func TestDirManager_Resolve(t *testing.T) {
	root := t.TempDir()
	compilerDir := writePackage(t, root, KindCompiler, "gcc-13", "id = \"gcc-13\"\nkind = \"compiler\"\n")
	sdkDir := writePackage(t, root, KindSDK, "host-sdk", "id = \"host-sdk\"\nkind = \"sdk\"\n")

	m := NewDirManager(root)

	path, err := m.ResolveToolchain("gcc-13")
	require.NoError(t, err)
	assert.Equal(t, compilerDir, path)

	path, err = m.ResolveSDK("host-sdk")
	require.NoError(t, err)
	assert.Equal(t, sdkDir, path)

	_, err = m.ResolveToolchain("msvc-2022")
	assert.ErrorIs(t, err, ErrNotInstalled)

	// sdk ids do not resolve as compilers
	_, err = m.ResolveToolchain("host-sdk")
	assert.ErrorIs(t, err, ErrNotInstalled)
}

func TestDirManager_EmptyRoot(t *testing.T) {
	m := NewDirManager("")

	_, err := m.ResolveToolchain("gcc-13")
	assert.ErrorIs(t, err, ErrNotInstalled)

	addons, err := m.Addons()
	require.NoError(t, err)
	assert.Empty(t, addons)
}

func TestDirManager_InvalidDescriptor(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, KindCompiler, "broken", "id = [")

	_, err := NewDirManager(root).ResolveToolchain("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
}

func TestDirManager_Addons(t *testing.T) {
	root := t.TempDir()
	physDir := writePackage(t, root, KindAddon, "physics", `
id = "physics"
kind = "addon"

[addon]
type = "library"
includes = ["include"]
libdirs = ["lib"]
libraries = ["physics"]
global = true
`)
	writePackage(t, root, KindAddon, "json", `
kind = "addon"

[addon]
type = "header-only"
includes = ["single_include"]
libraries = ["ignored"]
`)
	// directories without a descriptor are skipped
	require.NoError(t, os.MkdirAll(filepath.Join(root, string(KindAddon), "partial"), 0o755))

	addons, err := NewDirManager(root).Addons()
	require.NoError(t, err)
	require.Len(t, addons, 2)

	assert.Equal(t, "json", addons[0].ID)
	assert.Equal(t, AddonHeaderOnly, addons[0].Type)
	assert.Nil(t, addons[0].Libraries)

	phys := addons[1]
	assert.Equal(t, "physics", phys.ID)
	assert.Equal(t, AddonLibrary, phys.Type)
	assert.Equal(t, []string{filepath.Join(physDir, "include")}, phys.Includes)
	assert.Equal(t, []string{filepath.Join(physDir, "lib")}, phys.LibDirs)
	assert.Equal(t, []string{"physics"}, phys.Libraries)
	assert.True(t, phys.Global)
}

func TestGlobalize(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "project")

	assert.Equal(t, filepath.Join(base, "include"), Globalize(base, "include"))
	assert.Equal(t, filepath.Join(base, "include"), Globalize(base, "./sub/../include"))
	assert.Equal(t, "", Globalize(base, ""))

	abs := filepath.Join(string(filepath.Separator), "opt", "sdk")
	assert.Equal(t, abs, Globalize(base, abs))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "packages"), Globalize(base, "~/packages"))

	assert.Equal(t, []string{filepath.Join(base, "a")}, GlobalizeAll(base, []string{"", "a"}))
}
