package metadata

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// SymbolType is the storage class reported by the linker or symbol tool
type SymbolType uint8

const (
	SymbolUnknown SymbolType = iota
	SymbolCode
	SymbolData
)

// Symbol is a raw public symbol of a linked module
type Symbol struct {
	Mangled string
	Address string
	Object  string
	Type    SymbolType
}

const (
	publicsHeader = "Publics by Value"
	staticHeader  = "Static symbols"
	entryPoint    = "entry point at"
)

// ParseMapFile reads the public symbols of a linker map file.
// Symbols flagged "f" are code, everything else is treated as data.
func ParseMapFile(r io.Reader) ([]Symbol, error) {
	var (
		symbols []Symbol
		inside  bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.Contains(line, publicsHeader):
			inside = true
			continue
		case strings.HasPrefix(line, entryPoint), strings.HasPrefix(line, staticHeader):
			inside = false
			continue
		}

		if !inside || line == "" {
			continue
		}

		// address name rva+base [f] [i] lib:object
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.Contains(fields[0], ":") {
			continue
		}

		sym := Symbol{
			Address: fields[0],
			Mangled: fields[1],
			Type:    SymbolData,
		}

		for _, f := range fields[3:] {
			if f == "f" {
				sym.Type = SymbolCode
			}
		}

		if last := fields[len(fields)-1]; len(fields) > 3 && last != "f" && last != "i" {
			sym.Object = last
		}

		symbols = append(symbols, sym)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}

	return symbols, nil
}

// ParseSymbolListing reads nm output. Undefined symbols are skipped.
func ParseSymbolListing(r io.Reader) ([]Symbol, error) {
	var symbols []Symbol

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())

		var addr, letter, name string
		switch len(fields) {
		case 3:
			addr, letter, name = fields[0], fields[1], fields[2]
		case 2:
			letter, name = fields[0], fields[1]
		default:
			continue
		}

		typ, ok := symbolType(letter)
		if !ok {
			continue
		}

		symbols = append(symbols, Symbol{Mangled: name, Address: addr, Type: typ})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol listing: %w", err)
	}

	return symbols, nil
}

func symbolType(letter string) (SymbolType, bool) {
	if len(letter) != 1 {
		return SymbolUnknown, false
	}

	switch letter[0] {
	case 'T', 't', 'W', 'w':
		return SymbolCode, true
	case 'D', 'd', 'B', 'b', 'R', 'r', 'V', 'v':
		return SymbolData, true
	}

	return SymbolUnknown, false
}
