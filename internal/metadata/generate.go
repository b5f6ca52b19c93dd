package metadata

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Norgate-AV/spbuild/internal/unit"
)

var namespacePattern = regexp.MustCompile(`\bunit_([0-9a-f]{16})::`)

// generated symbols that carry a unit namespace but are not bindable
var skipPrefixes = []string{
	"vtable for ", "VTT for ", "typeinfo for ", "typeinfo name for ",
	"guard variable for ", "construction vtable for ", "non-virtual thunk to ",
	"virtual thunk to ", "covariant return thunk to ",
}

// Generate demangles symbols and builds the table of symbols declared inside
// the namespace of one of units. An empty table is an error.
func Generate(ctx context.Context, module, backend string, symbols []Symbol, units []*unit.Unit, d Demangler) (*Table, error) {
	owned := make(map[string]bool, len(units))
	for _, u := range units {
		owned[u.Identity] = true
	}

	seen := map[string]bool{}
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if !seen[s.Mangled] {
			seen[s.Mangled] = true
			names = append(names, s.Mangled)
		}
	}

	demangled, err := d.Demangle(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to demangle symbols: %w", err)
	}

	table := &Table{Module: module, Backend: backend}
	added := map[string]bool{}

	for _, s := range symbols {
		if added[s.Mangled] {
			continue
		}

		readable, ok := demangled[s.Mangled]
		if !ok || skip(readable) {
			continue
		}

		m := namespacePattern.FindStringSubmatch(readable)
		if m == nil || !owned[m[1]] {
			continue
		}

		entry := newEntry(s, readable, m[1])
		table.Entries = append(table.Entries, entry)
		added[s.Mangled] = true
	}

	if len(table.Entries) == 0 {
		return nil, ErrEmpty
	}

	sort.Slice(table.Entries, func(i, j int) bool {
		a, b := table.Entries[i], table.Entries[j]
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}

		if a.Name != b.Name {
			return a.Name < b.Name
		}

		return a.Mangled < b.Mangled
	})

	return table, nil
}

func newEntry(s Symbol, readable, identity string) Entry {
	cleaned := strings.ReplaceAll(Clean(readable), "unit_"+identity+"::", "")
	sig := Parse(cleaned)

	return Entry{
		Mangled:   s.Mangled,
		Signature: cleaned,
		Name:      sig.Name,
		Params:    nonEmpty(sig.Params),
		Return:    sig.Return,
		Kind:      Classify(s.Type, sig),
		Unit:      identity,
	}
}

func skip(readable string) bool {
	if strings.ContainsAny(readable, "`'") {
		return true
	}

	for _, p := range skipPrefixes {
		if strings.HasPrefix(readable, p) {
			return true
		}
	}

	return false
}

func nonEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}

	return s
}
