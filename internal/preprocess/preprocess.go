// Package preprocess turns a unit's raw source into a compilable translation unit.
package preprocess

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Norgate-AV/spbuild/internal/unit"
	"github.com/Norgate-AV/spbuild/internal/version"
	"github.com/tliron/commonlog"
)

const (
	beginMarker = "SCRIPT_BEGIN"
	endMarker   = "SCRIPT_END"
)

// lifecycle maps scripting hook names to the host's override names
var lifecycle = map[string]string{
	"OnReady":          "_ready",
	"OnProcess":        "_process",
	"OnPhysicsProcess": "_physics_process",
	"OnInput":          "_input",
	"OnUnhandledInput": "_unhandled_input",
	"OnEnterTree":      "_enter_tree",
	"OnExitTree":       "_exit_tree",
	"OnInit":           "_init",
	"OnNotification":   "_notification",
	"OnDraw":           "_draw",
}

var (
	lifecyclePattern = regexp.MustCompile(`\b(OnReady|OnProcess|OnPhysicsProcess|OnInput|OnUnhandledInput|OnEnterTree|OnExitTree|OnInit|OnNotification|OnDraw)\b`)
	markerPattern    = regexp.MustCompile(`\b(` + beginMarker + `|` + endMarker + `)\b`)
	preludePattern   = regexp.MustCompile(`^\s*(#\s*(include|pragma|import)\b.*|//.*)?$`)
)

var log = commonlog.GetLogger("spbuild.preprocess")

// Settings controls preprocessing of every unit in a build
type Settings struct {
	// Backend name, exposed as SPBUILD_COMPILER_<BACKEND>
	Backend string
	// User definitions, ';' delimited, each NAME or NAME=VALUE
	Defines string
	// Debug adds SPBUILD_DEBUG
	Debug bool
}

// Result is a preprocessed unit
type Result struct {
	Source     string
	Properties *Properties
}

// Preprocessor rewrites unit sources for compilation
type Preprocessor struct {
	settings Settings
}

// New creates a preprocessor
func New(settings Settings) *Preprocessor {
	return &Preprocessor{settings: settings}
}

// Process converts the unit's raw source into a translation unit without touching disk
func (p *Preprocessor) Process(u *unit.Unit) *Result {
	var b strings.Builder

	b.WriteString("// Generated by spbuild from " + filepath.ToSlash(u.SourcePath) + "\n")
	b.WriteString(p.featureMacros(u))
	b.WriteString(userDefines(p.settings.Defines))
	b.WriteString("#define SCRIPT_PROPERTY(Type, Name, Default, ...) Type Name = Default\n")
	fmt.Fprintf(&b, "#define %s namespace %s {\n", beginMarker, u.Namespace())
	fmt.Fprintf(&b, "#define %s }\n", endMarker)

	body := lifecyclePattern.ReplaceAllStringFunc(u.Source, func(name string) string {
		return lifecycle[name]
	})

	b.WriteString(wrap(body))

	return &Result{
		Source:     b.String(),
		Properties: ExtractProperties(u.Identity, u.Source),
	}
}

// Run preprocesses the unit and writes its cache file, plus the properties
// document when the unit declares at least one property
func (p *Preprocessor) Run(u *unit.Unit) (*Result, error) {
	if u.CachePath == "" {
		return nil, fmt.Errorf("unit %s has no cache path", u)
	}

	res := p.Process(u)

	if err := writeFile(u.CachePath, []byte(res.Source)); err != nil {
		return nil, err
	}

	if res.Properties.Empty() || u.PropertiesPath == "" {
		// stale documents from an earlier revision of the unit must not survive
		if u.PropertiesPath != "" {
			_ = os.Remove(u.PropertiesPath)
		}

		return res, nil
	}

	data, err := json.MarshalIndent(res.Properties, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	if err := writeFile(u.PropertiesPath, data); err != nil {
		return nil, err
	}

	log.Debugf("extracted %d properties from %s", len(res.Properties.Properties), u.Name)

	return res, nil
}

func (p *Preprocessor) featureMacros(u *unit.Unit) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#define SPBUILD_VERSION %q\n", version.Version)

	if p.settings.Backend != "" {
		fmt.Fprintf(&b, "#define SPBUILD_COMPILER_%s 1\n", macroName(p.settings.Backend))
	}

	b.WriteString("#define SPBUILD_LINKAGE_DYNAMIC 1\n")
	fmt.Fprintf(&b, "#define SPBUILD_UNIT_ID %q\n", u.Identity)

	if p.settings.Debug {
		b.WriteString("#define SPBUILD_DEBUG 1\n")
	}

	return b.String()
}

// userDefines expands a ';' delimited definition list into #define lines
func userDefines(defines string) string {
	var b strings.Builder

	for _, def := range strings.Split(defines, ";") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		name, value, ok := strings.Cut(def, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if ok {
			fmt.Fprintf(&b, "#define %s %s\n", name, strings.TrimSpace(value))
		} else {
			fmt.Fprintf(&b, "#define %s\n", name)
		}
	}

	return b.String()
}

// wrap resets line numbering and, when the body uses no markers, opens the
// unit namespace after the leading include block and closes it at the end
func wrap(body string) string {
	if markerPattern.MatchString(body) {
		return "#line 1\n" + terminate(body)
	}

	lines := strings.Split(body, "\n")
	prelude := 0
	for i, line := range lines {
		if !preludePattern.MatchString(line) {
			break
		}

		prelude = i + 1
	}

	var b strings.Builder
	b.WriteString("#line 1\n")

	for _, line := range lines[:prelude] {
		b.WriteString(line + "\n")
	}

	b.WriteString(beginMarker + "\n")
	fmt.Fprintf(&b, "#line %d\n", prelude+1)
	b.WriteString(terminate(strings.Join(lines[prelude:], "\n")))
	b.WriteString(endMarker + "\n")

	return b.String()
}

func terminate(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}

	return s + "\n"
}

func macroName(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(s))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
