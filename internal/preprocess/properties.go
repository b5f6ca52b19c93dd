package preprocess

import (
	"regexp"
	"strconv"
	"strings"
)

const propertyMacro = "SCRIPT_PROPERTY"

var propertyPattern = regexp.MustCompile(`\b` + propertyMacro + `\s*\(`)

// Property is one annotated property declaration
type Property struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default"`
	Hint    string `json:"hint,omitempty"`
	Line    int    `json:"line"`
}

// Properties is the extracted properties document of a unit
type Properties struct {
	Unit       string     `json:"unit"`
	Properties []Property `json:"properties"`
}

// Empty returns true if no property was declared
func (p *Properties) Empty() bool {
	return p == nil || len(p.Properties) == 0
}

// ExtractProperties scans source for SCRIPT_PROPERTY(Type, Name, Default[, "hint"])
// declarations. Malformed declarations are skipped.
func ExtractProperties(identity, source string) *Properties {
	doc := &Properties{Unit: identity, Properties: []Property{}}

	for _, loc := range propertyPattern.FindAllStringIndex(source, -1) {
		if inLineComment(source, loc[0]) {
			continue
		}

		args, ok := splitArgs(source[loc[1]:])
		if !ok || len(args) < 3 {
			continue
		}

		prop := Property{
			Type:    args[0],
			Name:    args[1],
			Default: args[2],
			Line:    strings.Count(source[:loc[0]], "\n") + 1,
		}

		if len(args) > 3 {
			if hint, err := strconv.Unquote(args[3]); err == nil {
				prop.Hint = hint
			} else {
				prop.Hint = args[3]
			}
		}

		if prop.Type == "" || prop.Name == "" {
			continue
		}

		doc.Properties = append(doc.Properties, prop)
	}

	return doc
}

// splitArgs splits a macro argument list up to its closing parenthesis.
// Commas nested in brackets or string literals do not split.
func splitArgs(s string) ([]string, bool) {
	var (
		args  []string
		depth int
		start int
		quote byte
	)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}

			continue
		}

		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{', '<':
			depth++
		case ']', '}':
			depth--
		case '>':
			if i > 0 && s[i-1] == '-' {
				continue
			}

			depth--
		case ')':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				return args, true
			}

			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}

	return nil, false
}

func inLineComment(source string, pos int) bool {
	lineStart := strings.LastIndexByte(source[:pos], '\n') + 1
	return strings.Contains(source[lineStart:pos], "//")
}
