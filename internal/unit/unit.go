// Package unit models script units: the user-authored source files compiled into a module.
package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Category tags how a unit participates in a build
type Category int

const (
	CategoryInUse Category = iota
	CategoryUnused
	CategoryInternal
	CategoryBuiltIn
	CategoryEntity
	CategoryBootstrap
)

func (c Category) String() string {
	switch c {
	case CategoryInUse:
		return "in-use"
	case CategoryUnused:
		return "unused"
	case CategoryInternal:
		return "internal"
	case CategoryBuiltIn:
		return "built-in"
	case CategoryEntity:
		return "entity"
	case CategoryBootstrap:
		return "bootstrap"
	default:
		return "unknown"
	}
}

// Unit is one script source file slated for compilation
type Unit struct {
	// Identity is a stable hash of the source path
	Identity string
	// Name is the display name (file name without extension)
	Name string
	// SourcePath is the absolute path of the user-authored file
	SourcePath string

	// CachePath is the preprocessed translation unit
	CachePath string
	// ObjectPath is the compiled object file
	ObjectPath string
	// PropertiesPath is the extracted properties document, written only when properties exist
	PropertiesPath string

	// Source is the raw source text
	Source string
	// Hash is the content hash of Source
	Hash string

	Category Category
}

// New reads a source file and creates its unit
func New(path string) (*Unit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	u := &Unit{
		Identity:   Identity(abs),
		Name:       displayName(abs),
		SourcePath: abs,
		Category:   Categorize(abs),
	}

	if _, err := u.Reload(); err != nil {
		return nil, err
	}

	return u, nil
}

// FromSource creates a unit from in-memory source, used when no file exists on disk
func FromSource(path, source string) *Unit {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &Unit{
		Identity:   Identity(abs),
		Name:       displayName(abs),
		SourcePath: abs,
		Source:     source,
		Hash:       HashBytes([]byte(source)),
		Category:   Categorize(abs),
	}
}

// Reload re-reads the source file, returning true if the content hash changed
func (u *Unit) Reload() (bool, error) {
	data, err := os.ReadFile(u.SourcePath)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", u.SourcePath, err)
	}

	hash := HashBytes(data)
	changed := hash != u.Hash
	u.Source = string(data)
	u.Hash = hash

	return changed, nil
}

// Namespace returns the namespace wrapping the unit body
func (u *Unit) Namespace() string {
	return "unit_" + u.Identity
}

// AssignPaths sets the cache, object and properties paths under outputDir
func (u *Unit) AssignPaths(outputDir, objectExt string) {
	u.CachePath = filepath.Join(outputDir, "cache", u.Identity+".cpp")
	u.ObjectPath = filepath.Join(outputDir, "obj", u.Identity+objectExt)
	u.PropertiesPath = filepath.Join(outputDir, "cache", u.Identity+".props.json")
}

// Buildable returns true if the unit takes part in compilation and linking
func (u *Unit) Buildable() bool {
	return u.Category != CategoryUnused
}

func (u *Unit) String() string {
	return fmt.Sprintf("%s (%s)", u.Name, u.Identity)
}

// Categorize derives a category from naming conventions
func Categorize(path string) Category {
	slashed := filepath.ToSlash(path)
	base := strings.ToLower(filepath.Base(path))

	switch {
	case strings.HasSuffix(base, ".bootstrap.cpp"):
		return CategoryBootstrap
	case strings.HasSuffix(base, ".entity.cpp"):
		return CategoryEntity
	case strings.Contains(slashed, "/builtin/"):
		return CategoryBuiltIn
	case strings.Contains(slashed, "/internal/"):
		return CategoryInternal
	}

	return CategoryInUse
}

func displayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
