// Package codes defines the tagged error codes reported by build stages.
//
// A code is a stage letter followed by a number: "C" for compile-side failures,
// "L" for link-side failures. Codes travel inside result objects as text, so a
// failure in one stage never unwinds through another.
package codes

import (
	"fmt"
	"strings"
)

const (
	NoCompiler        = "C100"
	CacheParse        = "C101"
	CompileSpawn      = "C102"
	CompileErrors     = "C103"
	Preprocess        = "C104"
	CompileNotSupport = "C105"
	SettingsInvalid   = "C106"
	CacheWrite        = "C107"

	LinkSpawn      = "L200"
	LinkErrors     = "L201"
	EmptyModule    = "L202"
	MetadataFailed = "L203"
	EmptyMetadata  = "L204"
	ModuleRead     = "L205"
	CacheCommit    = "L206"
	LinkNotSupport = "L207"
	EnvelopeFailed = "L208"
	NothingToLink  = "L209"
)

// ErrorCodes maps stage codes to their descriptions
var ErrorCodes = map[string]string{
	NoCompiler:        "No compiler detected, install one from the package manager",
	CacheParse:        "Failed to parse build cache",
	CompileSpawn:      "Cannot launch compiler",
	CompileErrors:     "Compile errors",
	Preprocess:        "Cannot write preprocessed unit",
	CompileNotSupport: "Operation not supported by this compiler",
	SettingsInvalid:   "Invalid compiler settings",
	CacheWrite:        "Cannot update build cache",

	LinkSpawn:      "Cannot launch linker",
	LinkErrors:     "Link errors",
	EmptyModule:    "Linker produced an empty module",
	MetadataFailed: "Cannot generate module metadata",
	EmptyMetadata:  "Module metadata has no resolvable symbols",
	ModuleRead:     "Cannot read module binary",
	CacheCommit:    "Cannot commit build cache",
	LinkNotSupport: "Operation not supported by this linker",
	EnvelopeFailed: "Cannot package module database",
	NothingToLink:  "No object files to link",
}

// Error is a stage failure tagged with a code
type Error struct {
	Code   string
	Detail string
}

// New creates a tagged error
func New(code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Newf creates a tagged error with a formatted detail
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, GetErrorMessage(e.Code))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	return msg
}

// IsCompile returns true if the code belongs to the compile stage
func IsCompile(code string) bool {
	return strings.HasPrefix(code, "C")
}

// IsLink returns true if the code belongs to the link stage
func IsLink(code string) bool {
	return strings.HasPrefix(code, "L")
}

// GetErrorMessage returns the description for a code, or a generic message if unknown
func GetErrorMessage(code string) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
