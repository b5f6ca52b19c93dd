package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"github.com/Norgate-AV/spbuild/internal/process"
)

// Demangler turns mangled names into readable signatures.
// Names it cannot demangle are absent from the returned map.
type Demangler interface {
	Demangle(ctx context.Context, names []string) (map[string]string, error)
}

// ItaniumDemangler demangles names produced by gcc and clang
type ItaniumDemangler struct{}

func (ItaniumDemangler) Demangle(_ context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))

	for _, name := range names {
		// Mach-O prefixes every symbol with an extra underscore
		mangled := name
		if strings.HasPrefix(mangled, "__Z") {
			mangled = mangled[1:]
		}

		s, err := demangle.ToString(mangled, demangle.NoClones)
		if err != nil {
			continue
		}

		out[name] = s
	}

	return out, nil
}

// undnameBatch bounds the names handed to one undname process
const undnameBatch = 64

// UndnameDemangler runs undname or llvm-undname for Microsoft mangled names
type UndnameDemangler struct {
	Runner process.Runner
	Path   string
}

func (d *UndnameDemangler) Demangle(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))

	for start := 0; start < len(names); start += undnameBatch {
		end := min(start+undnameBatch, len(names))
		batch := names[start:end]

		res, err := d.Runner.Run(ctx, process.Command{Path: d.Path, Args: batch})
		if err != nil {
			return nil, fmt.Errorf("failed to run %s: %w", d.Path, err)
		}

		for k, v := range parseUndname(res.Output, batch) {
			out[k] = v
		}
	}

	return out, nil
}

// parseUndname reads both the Microsoft format
//
//	Undecoration of :- "?x@@3HA"
//	is :- "int x"
//
// and the llvm-undname format, which echoes each name followed by its result.
func parseUndname(output string, names []string) map[string]string {
	requested := make(map[string]bool, len(names))
	for _, n := range names {
		requested[n] = true
	}

	out := map[string]string{}
	pending := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if v, ok := quotedAfter(line, "Undecoration of :-"); ok {
			pending = v
			continue
		}

		if v, ok := quotedAfter(line, "is :-"); ok {
			if pending != "" && v != pending {
				out[pending] = v
			}

			pending = ""
			continue
		}

		if requested[line] {
			pending = line
			continue
		}

		if pending != "" {
			if !strings.HasPrefix(line, "error:") && !strings.HasPrefix(line, "Invalid") {
				out[pending] = line
			}

			pending = ""
		}
	}

	return out
}

func quotedAfter(line, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}

	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false
	}

	return rest[1 : len(rest)-1], true
}
