package cache

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/spbuild/internal/unit"
)

func testUnits() []*unit.Unit {
	units := []*unit.Unit{
		unit.FromSource("/project/Player.cpp", "player v1"),
		unit.FromSource("/project/Enemy.cpp", "enemy v1"),
		unit.FromSource("/project/World.cpp", "world v1"),
	}

	for _, u := range units {
		u.AssignPaths("/project/out", ".o")
	}

	return units
}

func proxyName(u *unit.Unit) string {
	return filepath.Base(u.CachePath)
}

func testHeaders() []unit.Header {
	return []unit.Header{
		{Identity: "h1", Path: "/project/a.h", Hash: "aaa"},
		{Identity: "h2", Path: "/project/b.h", Hash: "bbb"},
	}
}

func commitAll(t *testing.T, l *Ledger, units []*unit.Unit, headers []unit.Header) {
	t.Helper()
	for _, u := range units {
		l.Record(u)
	}
	require.NoError(t, l.Commit(units, headers, ""))
}

func TestLoad_MissingFileCreatesEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build", "BuildCache.json")

	l, err := Load(path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	rec := l.Snapshot()
	assert.Empty(t, rec.Modules)
	assert.Empty(t, rec.Headers)
	assert.Empty(t, rec.Proxies)
	assert.Equal(t, 0, rec.HeaderCount)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BuildCache.json")
	require.NoError(t, os.WriteFile(path, []byte("{ not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
	assert.Contains(t, err.Error(), "failed to parse build cache")
}

func TestLoad_NullMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BuildCache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"HeaderCount": 0}`), 0o644))

	l, err := Load(path)
	require.NoError(t, err)

	// nil maps are normalized so AddProxy does not panic
	l.AddProxy("x.cpp", "/project/X.cpp")
	assert.Equal(t, "/project/X.cpp", l.Proxies()["x.cpp"])
}

func TestCommit_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BuildCache.json")
	units := testUnits()

	l, err := Load(path)
	require.NoError(t, err)

	l.AddProxy(proxyName(units[0]), units[0].SourcePath)
	l.AddProxy(proxyName(units[1]), units[1].SourcePath)
	commitAll(t, l, units, testHeaders())

	reloaded, err := Load(path)
	require.NoError(t, err)

	want := l.Snapshot()
	got := reloaded.Snapshot()
	assert.Equal(t, want.Modules, got.Modules)
	assert.Equal(t, want.Proxies, got.Proxies)
	assert.Len(t, got.Proxies, 2)
	assert.Equal(t, want.Headers, got.Headers)
	assert.Equal(t, 2, got.HeaderCount)

	for _, u := range units {
		assert.True(t, reloaded.UnitUnchanged(u), "%s should be unchanged after reload", u.Name)
	}
}

func TestCommit_FileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BuildCache.json")
	l := New(path)
	commitAll(t, l, testUnits()[:1], testHeaders()[:1])

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, key := range []string{`"Headers"`, `"HeaderCount"`, `"Modules"`, `"Proxies"`} {
		assert.Contains(t, string(data), key)
	}
}

func TestPending_HashGated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BuildCache.json")
	units := testUnits()

	l := New(path)
	commitAll(t, l, units, testHeaders())
	assert.Empty(t, l.Pending(units), "nothing changed")

	edited := unit.FromSource("/project/Enemy.cpp", "enemy v2")
	current := []*unit.Unit{units[0], edited, units[2]}

	pending := l.Pending(current)
	require.Len(t, pending, 1)
	assert.Same(t, edited, pending[0])
}

func TestHeadersChanged(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "BuildCache.json"))
	headers := testHeaders()
	commitAll(t, l, testUnits(), headers)

	assert.False(t, l.HeadersChanged(headers))

	// content change
	changed := []unit.Header{headers[0], {Identity: "h2", Path: "/project/b.h", Hash: "ccc"}}
	assert.True(t, l.HeadersChanged(changed))

	// count change
	assert.True(t, l.HeadersChanged(headers[:1]))

	// renamed header with same count
	renamed := []unit.Header{headers[0], {Identity: "h3", Path: "/project/c.h", Hash: "bbb"}}
	assert.True(t, l.HeadersChanged(renamed))
}

func TestInvalidateAll_RecompilesEverything(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "BuildCache.json"))
	units := testUnits()
	commitAll(t, l, units, testHeaders())

	l.InvalidateAll()

	assert.Len(t, l.Pending(units), len(units))
	for _, hash := range l.Snapshot().Modules {
		assert.Equal(t, NoHash, hash)
	}
}

func TestCommit_KeepsUncompiledRecordsAndDropsRemoved(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "BuildCache.json"))
	units := testUnits()
	commitAll(t, l, units, nil)

	// a later build only compiles Player, and World has been deleted
	l.InvalidateAll()
	l.Record(units[0])
	require.NoError(t, l.Commit(units[:2], nil, ""))

	rec := l.Snapshot()
	assert.Equal(t, units[0].Hash, rec.Modules[units[0].Identity])
	assert.Equal(t, NoHash, rec.Modules[units[1].Identity])
	_, ok := rec.Modules[units[2].Identity]
	assert.False(t, ok)
}

func TestRecord_Concurrent(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "BuildCache.json"))

	var units []*unit.Unit
	for i := 0; i < 64; i++ {
		units = append(units, unit.FromSource(filepath.Join("/project", string(rune('a'+i%26))+string(rune('a'+i/26))+".cpp"), "x"))
	}

	var wg sync.WaitGroup
	for _, u := range units {
		wg.Add(1)
		go func(u *unit.Unit) {
			defer wg.Done()
			l.Record(u)
		}(u)
	}
	wg.Wait()

	require.NoError(t, l.Commit(units, nil, ""))
	assert.Empty(t, l.Pending(units))
}

func TestCommit_DropsRemovedProxies(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "BuildCache.json"))
	units := testUnits()

	for _, u := range units {
		l.AddProxy(proxyName(u), u.SourcePath)
	}
	commitAll(t, l, units, nil)
	require.Len(t, l.Proxies(), 3)

	// World has been deleted
	require.NoError(t, l.Commit(units[:2], nil, ""))

	proxies := l.Proxies()
	assert.Len(t, proxies, 2)
	assert.Equal(t, units[0].SourcePath, proxies[proxyName(units[0])])
	_, ok := proxies[proxyName(units[2])]
	assert.False(t, ok)
}

func TestCovers(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "BuildCache.json"))
	units := testUnits()

	assert.False(t, l.Covers(units), "empty ledger")

	commitAll(t, l, units, nil)
	assert.True(t, l.Covers(units))

	tests := []struct {
		name  string
		units []*unit.Unit
	}{
		{"unit removed", units[:2]},
		{"unit added", append(testUnits(), unit.FromSource("/project/Boss.cpp", "boss v1"))},
		{"unit edited", []*unit.Unit{units[0], units[1], unit.FromSource("/project/World.cpp", "world v2")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, l.Covers(tt.units))
		})
	}

	l.InvalidateAll()
	assert.False(t, l.Covers(units), "invalidated")
}
