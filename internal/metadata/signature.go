package metadata

import (
	"regexp"
	"strings"
)

// noisePattern matches access specifiers, calling conventions and storage classes
var noisePattern = regexp.MustCompile(`\b(public|protected|private):\s*|\b(static|virtual|class|struct|enum|union)\s+|\b__(cdecl|stdcall|fastcall|thiscall|vectorcall|ptr64|ptr32)\b|extern "C"\s*`)

// Clean strips signature noise that does not affect binding
func Clean(sig string) string {
	sig = noisePattern.ReplaceAllString(sig, "")
	sig = strings.Join(strings.Fields(sig), " ")

	sig = strings.ReplaceAll(sig, ")const", ") const")

	return strings.ReplaceAll(sig, "(void)", "()")
}

// Signature is a parsed symbol signature
type Signature struct {
	// Return is the return type of a function or the type of a variable
	Return string
	// Name is the qualified name
	Name string
	// Params is nil for variables
	Params []string
	// Function is false for variables
	Function bool
	// Const marks a const member function
	Const bool
}

// Parse splits a cleaned signature into return type, qualified name and parameters.
// The scan is bracket-aware so nested template argument lists do not end the
// parameter list early.
func Parse(sig string) Signature {
	sig = strings.TrimSpace(sig)

	var s Signature
	if rest, ok := strings.CutSuffix(sig, " const"); ok && strings.HasSuffix(rest, ")") {
		sig = rest
		s.Const = true
	}

	if open := paramsStart(sig); open >= 0 {
		s.Function = true
		s.Params = splitTopLevel(sig[open+1 : len(sig)-1])
		sig = strings.TrimSpace(sig[:open])
	}

	if i := lastTopLevelSpace(sig); i >= 0 {
		s.Return = strings.TrimSpace(sig[:i])
		s.Name = strings.TrimSpace(sig[i+1:])
	} else {
		s.Name = sig
	}

	return s
}

// paramsStart returns the index of the '(' matching a trailing ')', or -1
func paramsStart(sig string) int {
	if !strings.HasSuffix(sig, ")") {
		return -1
	}

	depth := 0
	for i := len(sig) - 1; i >= 0; i-- {
		switch sig[i] {
		case ')', '>', ']':
			depth++
		case '(', '<', '[':
			depth--
			if depth == 0 {
				if sig[i] != '(' {
					return -1
				}

				return i
			}
		}
	}

	return -1
}

func splitTopLevel(s string) []string {
	params := []string{}
	if strings.TrimSpace(s) == "" || strings.TrimSpace(s) == "void" {
		return params
	}

	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '<', '[':
			depth++
		case ')', '>', ']':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}

	return append(params, strings.TrimSpace(s[start:]))
}

func lastTopLevelSpace(s string) int {
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ')', '>', ']':
			depth++
		case '(', '<', '[':
			depth--
		case ' ':
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// Classify derives the entry kind from the symbol storage and signature shape.
// Variables, getters (no parameters, non-void result) and setters (one
// parameter, void result) named get/set are properties.
func Classify(typ SymbolType, sig Signature) Kind {
	if typ == SymbolData || !sig.Function {
		return KindProperty
	}

	name := sig.Name
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}

	ret := sig.Return
	switch {
	case hasAccessorPrefix(name, "get") && len(sig.Params) == 0 && ret != "void":
		return KindProperty
	case hasAccessorPrefix(name, "set") && len(sig.Params) == 1 && (ret == "void" || ret == ""):
		return KindProperty
	}

	return KindFunction
}

// hasAccessorPrefix matches get_x, getX and GetX
func hasAccessorPrefix(name, prefix string) bool {
	if len(name) <= len(prefix) {
		return false
	}

	head, rest := name[:len(prefix)], name[len(prefix):]
	if !strings.EqualFold(head, prefix) {
		return false
	}

	c := rest[0]
	return c == '_' || (c >= 'A' && c <= 'Z')
}
