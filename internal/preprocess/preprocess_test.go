package preprocess

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Norgate-AV/spbuild/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playerSource = `#include "Player.h"

SCRIPT_PROPERTY(float, speed, 4.5f, "Units per second");
SCRIPT_PROPERTY(std::map<int, int>, table, {});

void Player::OnReady() {
	OnReadyCount++;
}

void Player::OnProcess(double delta) {}
`

func newUnit(t *testing.T, source string) *unit.Unit {
	t.Helper()

	dir := t.TempDir()
	u := unit.FromSource(filepath.Join(dir, "Player.cpp"), source)
	u.AssignPaths(filepath.Join(dir, "out"), ".obj")

	return u
}

func TestProcess_FeatureMacros(t *testing.T) {
	u := newUnit(t, playerSource)
	res := New(Settings{Backend: "clang-cl", Debug: true}).Process(u)

	assert.Contains(t, res.Source, "#define SPBUILD_VERSION ")
	assert.Contains(t, res.Source, "#define SPBUILD_COMPILER_CLANG_CL 1\n")
	assert.Contains(t, res.Source, "#define SPBUILD_LINKAGE_DYNAMIC 1\n")
	assert.Contains(t, res.Source, `#define SPBUILD_UNIT_ID "`+u.Identity+`"`)
	assert.Contains(t, res.Source, "#define SPBUILD_DEBUG 1\n")

	release := New(Settings{Backend: "gcc"}).Process(u)
	assert.NotContains(t, release.Source, "SPBUILD_DEBUG")
	assert.Contains(t, release.Source, "#define SPBUILD_COMPILER_GCC 1\n")
}

func TestProcess_UserDefines(t *testing.T) {
	tests := []struct {
		name    string
		defines string
		want    []string
		absent  []string
	}{
		{
			name:    "empty",
			defines: "",
			absent:  []string{"#define FOO"},
		},
		{
			name:    "names and values",
			defines: "FOO; BAR=2 ;;BAZ = \"x\"",
			want:    []string{"#define FOO\n", "#define BAR 2\n", "#define BAZ \"x\"\n"},
		},
		{
			name:    "missing name skipped",
			defines: "=3;QUX",
			want:    []string{"#define QUX\n"},
			absent:  []string{"#define  3", "#define 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(Settings{Defines: tt.defines}).Process(newUnit(t, "int x;\n"))
			for _, w := range tt.want {
				assert.Contains(t, res.Source, w)
			}

			for _, a := range tt.absent {
				assert.NotContains(t, res.Source, a)
			}
		})
	}
}

func TestProcess_LifecycleRewrites(t *testing.T) {
	res := New(Settings{}).Process(newUnit(t, playerSource))

	assert.Contains(t, res.Source, "void Player::_ready() {")
	assert.Contains(t, res.Source, "void Player::_process(double delta) {}")
	// whole identifiers only
	assert.Contains(t, res.Source, "OnReadyCount++;")
}

func TestProcess_AutoWrapKeepsLineNumbers(t *testing.T) {
	u := newUnit(t, playerSource)
	res := New(Settings{}).Process(u)

	body := res.Source[strings.Index(res.Source, "#line 1\n"):]
	assert.Equal(t, "#line 1\n"+
		"#include \"Player.h\"\n"+
		"\n"+
		"SCRIPT_BEGIN\n"+
		"#line 3\n"+
		"SCRIPT_PROPERTY(float, speed, 4.5f, \"Units per second\");\n"+
		"SCRIPT_PROPERTY(std::map<int, int>, table, {});\n"+
		"\n"+
		"void Player::_ready() {\n"+
		"\tOnReadyCount++;\n"+
		"}\n"+
		"\n"+
		"void Player::_process(double delta) {}\n"+
		"SCRIPT_END\n", body)

	assert.Contains(t, res.Source, "#define SCRIPT_BEGIN namespace "+u.Namespace()+" {\n")
	assert.Contains(t, res.Source, "#define SCRIPT_END }\n")
}

func TestProcess_ExplicitMarkers(t *testing.T) {
	source := "#include <vector>\nSCRIPT_BEGIN\nint x = 1;\nSCRIPT_END"
	res := New(Settings{}).Process(newUnit(t, source))

	assert.True(t, strings.HasSuffix(res.Source, "#line 1\n"+source+"\n"))
	assert.Equal(t, 1, strings.Count(res.Source, "\nSCRIPT_BEGIN\n"))
}

func TestExtractProperties(t *testing.T) {
	props := ExtractProperties("abc", playerSource+
		"// SCRIPT_PROPERTY(int, ignored, 0);\n"+
		"SCRIPT_PROPERTY(int, broken\n")

	require.Len(t, props.Properties, 2)
	assert.Equal(t, "abc", props.Unit)
	assert.Equal(t, Property{Name: "speed", Type: "float", Default: "4.5f", Hint: "Units per second", Line: 3}, props.Properties[0])
	assert.Equal(t, Property{Name: "table", Type: "std::map<int, int>", Default: "{}", Line: 4}, props.Properties[1])
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
		ok   bool
	}{
		{"a, b, c)", []string{"a", "b", "c"}, true},
		{"f(1, 2), g[3], \"x,)\")", []string{"f(1, 2)", "g[3]", "\"x,)\""}, true},
		{"Foo<Bar<int, 2>>, p->q, 'c')", []string{"Foo<Bar<int, 2>>", "p->q", "'c'"}, true},
		{"a, b", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := splitArgs(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_WritesFiles(t *testing.T) {
	u := newUnit(t, playerSource)

	res, err := New(Settings{}).Run(u)
	require.NoError(t, err)

	data, err := os.ReadFile(u.CachePath)
	require.NoError(t, err)
	assert.Equal(t, res.Source, string(data))

	raw, err := os.ReadFile(u.PropertiesPath)
	require.NoError(t, err)

	var doc Properties
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, u.Identity, doc.Unit)
	assert.Len(t, doc.Properties, 2)
}

func TestRun_NoPropertiesNoDocument(t *testing.T) {
	u := newUnit(t, playerSource)
	_, err := New(Settings{}).Run(u)
	require.NoError(t, err)
	require.FileExists(t, u.PropertiesPath)

	// the properties are removed in a later revision
	u.Source = "int x;\n"
	_, err = New(Settings{}).Run(u)
	require.NoError(t, err)

	assert.NoFileExists(t, u.PropertiesPath)
}

func TestRun_NoCachePath(t *testing.T) {
	u := unit.FromSource("Player.cpp", "int x;")
	_, err := New(Settings{}).Run(u)
	assert.Error(t, err)
}
