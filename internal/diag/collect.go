package diag

import (
	"strings"
)

// Report is the classified output of one or more processes
type Report struct {
	Diagnostics []Diagnostic

	errors   strings.Builder
	warnings strings.Builder
	verbose  strings.Builder
}

// Add classifies output, rewrites proxy references and appends it to the report
func (r *Report) Add(output string, proxies map[string]string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		r.AddLine(line, proxies)
	}
}

// AddLine classifies a single line
func (r *Report) AddLine(line string, proxies map[string]string) Diagnostic {
	d := Parse(Rewrite(line, proxies))
	r.Diagnostics = append(r.Diagnostics, d)

	switch d.Severity {
	case SeverityError:
		r.errors.WriteString(d.Raw + "\n")
	case SeverityWarning:
		r.warnings.WriteString(d.Raw + "\n")
	default:
		r.verbose.WriteString(d.Raw + "\n")
	}

	return d
}

// AddError records a message produced by the build itself rather than a tool
func (r *Report) AddError(msg string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityError, Message: msg, Raw: msg})
	r.errors.WriteString(msg + "\n")
}

// AddVerbose records an informational message produced by the build itself
func (r *Report) AddVerbose(msg string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityInfo, Message: msg, Raw: msg})
	r.verbose.WriteString(msg + "\n")
}

// Errors returns the error text
func (r *Report) Errors() string {
	return r.errors.String()
}

// Warnings returns the warning text
func (r *Report) Warnings() string {
	return r.warnings.String()
}

// Verbose returns the remaining text
func (r *Report) Verbose() string {
	return r.verbose.String()
}

// HasErrors returns true if any error line was recorded
func (r *Report) HasErrors() bool {
	return r.errors.Len() > 0
}

// Collect classifies output in one call
func Collect(output string, proxies map[string]string) *Report {
	r := &Report{}
	r.Add(output, proxies)
	return r
}
