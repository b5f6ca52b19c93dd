// Package diag classifies compiler and linker output lines and maps diagnostics
// that reference generated files back to the user's source files.
package diag

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Severity of a diagnostic line
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityNote
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Diagnostic is one classified output line
type Diagnostic struct {
	File     string
	Line     int
	Column   int
	Severity Severity
	Code     string
	Message  string
	// Raw is the line as printed, after proxy rewriting
	Raw string
}

var (
	// file(line[,col]): severity [code]: message
	msvcPattern = regexp.MustCompile(`^(.+?)\((\d+)(?:,(\d+))?\)\s*:\s*(fatal error|error|warning|note)\s*([A-Z]+\d+)?\s*:?\s*(.*)$`)
	// file:line[:col]: severity: message
	gnuPattern = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s*(fatal error|error|warning|note):\s*(.*)$`)
	// tool-level lines without a location, e.g. "LINK : fatal error LNK1104: ..." or "ld: error: ..."
	toolPattern = regexp.MustCompile(`^(\S[^:]*?)\s*:\s*(fatal error|error|warning)\s*([A-Z]+\d+)?\s*:\s*(.*)$`)
)

// Parse classifies a single line
func Parse(line string) Diagnostic {
	d := Diagnostic{Raw: line, Message: line}

	if m := msvcPattern.FindStringSubmatch(line); m != nil {
		d.File = m[1]
		d.Line, _ = strconv.Atoi(m[2])
		d.Column, _ = strconv.Atoi(m[3])
		d.Severity = parseSeverity(m[4])
		d.Code = m[5]
		d.Message = m[6]
		return d
	}

	if m := gnuPattern.FindStringSubmatch(line); m != nil {
		d.File = m[1]
		d.Line, _ = strconv.Atoi(m[2])
		d.Column, _ = strconv.Atoi(m[3])
		d.Severity = parseSeverity(m[4])
		d.Message = m[5]
		return d
	}

	if m := toolPattern.FindStringSubmatch(line); m != nil {
		d.Severity = parseSeverity(m[2])
		d.Code = m[3]
		d.Message = m[4]
		return d
	}

	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "undefined reference"), strings.Contains(lower, "unresolved external"):
		d.Severity = SeverityError
	case strings.HasPrefix(lower, "error"):
		d.Severity = SeverityError
	case strings.HasPrefix(lower, "warning"):
		d.Severity = SeverityWarning
	}

	return d
}

func parseSeverity(s string) Severity {
	switch s {
	case "error", "fatal error":
		return SeverityError
	case "warning":
		return SeverityWarning
	case "note":
		return SeverityNote
	}

	return SeverityInfo
}

// Rewrite replaces a generated file reference at the start of line with its
// original source path. proxies maps generated base names to source paths.
// Lines that do not reference a known proxy are returned unchanged.
func Rewrite(line string, proxies map[string]string) string {
	if len(proxies) == 0 {
		return line
	}

	d := Parse(line)
	if d.File == "" {
		return line
	}

	source, ok := lookup(d.File, proxies)
	if !ok {
		return line
	}

	return source + line[len(d.File):]
}

func lookup(file string, proxies map[string]string) (string, bool) {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(file, `\`, "/")))
	if source, ok := proxies[base]; ok {
		return source, true
	}

	// case-insensitive file systems report generated names in arbitrary case
	for name, source := range proxies {
		if strings.EqualFold(name, base) {
			return source, true
		}
	}

	return "", false
}
