package unit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIdentity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "Player.cpp")

	id := Identity(a)
	assert.Len(t, id, 16)
	assert.Equal(t, id, Identity(filepath.Join(dir, "sub", "..", "Player.cpp")), "identity must be path-stable")
	assert.NotEqual(t, id, Identity(filepath.Join(dir, "Enemy.cpp")))
}

func TestNew_AndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Player.cpp")
	writeFile(t, path, "void OnReady() {}")

	u, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "Player", u.Name)
	assert.Equal(t, path, u.SourcePath)
	assert.Equal(t, HashBytes([]byte("void OnReady() {}")), u.Hash)
	assert.Equal(t, "unit_"+u.Identity, u.Namespace())
	assert.Equal(t, CategoryInUse, u.Category)

	changed, err := u.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	writeFile(t, path, "void OnReady() { int x; }")
	changed, err = u.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "void OnReady() { int x; }", u.Source)

	_, err = New(filepath.Join(dir, "Missing.cpp"))
	assert.Error(t, err)
}

func TestAssignPaths(t *testing.T) {
	u := FromSource("/project/Player.cpp", "int x;")
	u.AssignPaths("/out", ".obj")

	assert.Equal(t, filepath.Join("/out", "cache", u.Identity+".cpp"), u.CachePath)
	assert.Equal(t, filepath.Join("/out", "obj", u.Identity+".obj"), u.ObjectPath)
	assert.Equal(t, filepath.Join("/out", "cache", u.Identity+".props.json"), u.PropertiesPath)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		path string
		want Category
	}{
		{"/p/Player.cpp", CategoryInUse},
		{"/p/Game.bootstrap.cpp", CategoryBootstrap},
		{"/p/Enemy.entity.cpp", CategoryEntity},
		{"/p/builtin/Math.cpp", CategoryBuiltIn},
		{"/p/internal/Glue.cpp", CategoryInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.path), "Categorize(%q)", tt.path)
	}

	assert.Equal(t, "bootstrap", CategoryBootstrap.String())
	assert.Equal(t, "unknown", Category(99).String())
}

func TestContainer(t *testing.T) {
	a := FromSource("/p/A.cpp", "a")
	b := FromSource("/p/B.cpp", "b")
	c := FromSource("/p/C.cpp", "c")
	c.Category = CategoryUnused
	all := []*Unit{a, b, c}

	project := Project(all)
	assert.False(t, project.IsSingle())
	assert.Equal(t, []*Unit{a, b}, project.Targets())
	assert.Equal(t, []*Unit{a, b}, project.Linkable())

	single := Single(b, all)
	assert.True(t, single.IsSingle())
	assert.Equal(t, []*Unit{b}, single.Targets())
	assert.Equal(t, []*Unit{a, b}, single.Linkable())

	assert.Same(t, a, single.Find(a.Identity))
	assert.Nil(t, single.Find("nope"))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Player.cpp"), "player")
	writeFile(t, filepath.Join(root, "ai", "Enemy.entity.cpp"), "enemy")
	writeFile(t, filepath.Join(root, "old", "Legacy.cpp"), "legacy")
	writeFile(t, filepath.Join(root, "include", "Common.h"), "#pragma once")
	writeFile(t, filepath.Join(root, ".hidden", "Secret.cpp"), "hidden")
	writeFile(t, filepath.Join(root, "build", "cache", "abc.cpp"), "generated")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

	units, headers, err := Discover(root, DiscoverOptions{
		Exclude:  []string{"old/*.cpp"},
		SkipDirs: []string{filepath.Join(root, "build")},
	})
	require.NoError(t, err)

	require.Len(t, units, 3)
	// sorted by path: upper-case "Player.cpp" sorts before the "ai" and "old" dirs
	assert.Equal(t, "Player", units[0].Name)
	assert.Equal(t, "Enemy.entity", units[1].Name)
	assert.Equal(t, CategoryEntity, units[1].Category)
	assert.Equal(t, "Legacy", units[2].Name)
	assert.Equal(t, CategoryUnused, units[2].Category)

	require.Len(t, headers, 1)
	assert.Equal(t, filepath.Join(root, "include", "Common.h"), headers[0].Path)
	assert.Equal(t, HashBytes([]byte("#pragma once")), headers[0].Hash)
	assert.Equal(t, Identity(headers[0].Path), headers[0].Identity)
}
