package backend

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Options is the typed configuration of a backend.
// Tool paths are relative to the toolchain root until SolveSettings resolves them.
type Options struct {
	Instance string

	// Default package identities
	Toolchain string
	SDK       string

	Compiler   string
	Linker     string
	SymbolTool string
	Demangler  string

	Standard     string
	Optimize     []string
	DebugCompile []string
	DebugLink    []string
	ExtraCompile []string
	ExtraLink    []string
	Subsystem    string

	// SystemLibs are fixed system libraries, NativeLibs are host libraries
	SystemLibs []string
	NativeLibs []string

	ObjectExt string
	ModuleExt string

	// Stream compiles units serially with live output instead of through the scheduler
	Stream bool

	// Resolved by SolveSettings
	ToolchainDir string
	SDKDir       string
	IncludeDirs  []string
	LibDirs      []string
}

type optionField struct {
	get func(o *Options) string
	set func(o *Options, v string) error
}

func stringField(p func(o *Options) *string) optionField {
	return optionField{
		get: func(o *Options) string { return *p(o) },
		set: func(o *Options, v string) error {
			*p(o) = v
			return nil
		},
	}
}

func listField(p func(o *Options) *[]string) optionField {
	return optionField{
		get: func(o *Options) string { return strings.Join(*p(o), " ") },
		set: func(o *Options, v string) error {
			*p(o) = strings.Fields(v)
			return nil
		},
	}
}

var optionFields = map[string]optionField{
	"toolchain":     stringField(func(o *Options) *string { return &o.Toolchain }),
	"sdk":           stringField(func(o *Options) *string { return &o.SDK }),
	"compiler":      stringField(func(o *Options) *string { return &o.Compiler }),
	"linker":        stringField(func(o *Options) *string { return &o.Linker }),
	"symbol_tool":   stringField(func(o *Options) *string { return &o.SymbolTool }),
	"demangler":     stringField(func(o *Options) *string { return &o.Demangler }),
	"standard":      stringField(func(o *Options) *string { return &o.Standard }),
	"subsystem":     stringField(func(o *Options) *string { return &o.Subsystem }),
	"object_ext":    stringField(func(o *Options) *string { return &o.ObjectExt }),
	"module_ext":    stringField(func(o *Options) *string { return &o.ModuleExt }),
	"optimize":      listField(func(o *Options) *[]string { return &o.Optimize }),
	"debug_compile": listField(func(o *Options) *[]string { return &o.DebugCompile }),
	"debug_link":    listField(func(o *Options) *[]string { return &o.DebugLink }),
	"extra_compile": listField(func(o *Options) *[]string { return &o.ExtraCompile }),
	"extra_link":    listField(func(o *Options) *[]string { return &o.ExtraLink }),
	"system_libs":   listField(func(o *Options) *[]string { return &o.SystemLibs }),
	"native_libs":   listField(func(o *Options) *[]string { return &o.NativeLibs }),
	"stream": {
		get: func(o *Options) string { return strconv.FormatBool(o.Stream) },
		set: func(o *Options, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream: %s", v)
			}

			o.Stream = b
			return nil
		},
	},
}

// OptionKeys lists the keys accepted by SetOption
func OptionKeys() []string {
	keys := make([]string, 0, len(optionFields))
	for k := range optionFields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Set assigns one option by key. List options take space separated values.
func (o *Options) Set(key, value string) error {
	f, ok := optionFields[key]
	if !ok {
		return fmt.Errorf("unknown option: %s", key)
	}

	return f.set(o, value)
}

// Get reads one option by key
func (o *Options) Get(key string) (string, bool) {
	f, ok := optionFields[key]
	if !ok {
		return "", false
	}

	return f.get(o), true
}
