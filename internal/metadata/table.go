// Package metadata builds the symbol table sidecar of a linked module.
//
// Symbols come from a linker map file (proprietary toolchains) or a symbol
// listing of the module (open toolchains). Only symbols declared inside a unit
// namespace are kept; everything else belongs to runtime or library code.
package metadata

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// SidecarExt is appended to a module path to name its metadata file
const SidecarExt = ".meta"

// Kind classifies an exported symbol
type Kind uint8

const (
	KindFunction Kind = iota + 1
	KindProperty
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindProperty:
		return "property"
	default:
		return "unknown"
	}
}

// Entry is one exported symbol
type Entry struct {
	Mangled   string   `cbor:"1,keyasint"`
	Signature string   `cbor:"2,keyasint"`
	Name      string   `cbor:"3,keyasint"`
	Params    []string `cbor:"4,keyasint,omitempty"`
	Return    string   `cbor:"5,keyasint,omitempty"`
	Kind      Kind     `cbor:"6,keyasint"`
	Unit      string   `cbor:"7,keyasint"`
}

// Table is the metadata sidecar of one module
type Table struct {
	Module  string  `cbor:"1,keyasint"`
	Backend string  `cbor:"2,keyasint"`
	Entries []Entry `cbor:"3,keyasint"`
}

// ErrEmpty is returned when a module exports no resolvable symbol
var ErrEmpty = errors.New("metadata table is empty")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("metadata: failed to create CBOR enc mode: %v", err))
	}

	encMode = em
}

// Marshal serializes the table deterministically
func (t *Table) Marshal() ([]byte, error) {
	if len(t.Entries) == 0 {
		return nil, ErrEmpty
	}

	data, err := encMode.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return data, nil
}

// Decode deserializes a table
func Decode(data []byte) (*Table, error) {
	var t Table
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return &t, nil
}

// ReadFile decodes the sidecar at path
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	return Decode(data)
}

// Lookup returns the entry with the given name, or the mangled name
func (t *Table) Lookup(name string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.Name == name || e.Mangled == name {
			return e, true
		}
	}

	return Entry{}, false
}

// Filter returns the entries of the given kind
func (t *Table) Filter(kind Kind) []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}

	return out
}
