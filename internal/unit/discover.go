package unit

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ScriptExtensions are the source extensions treated as units
var ScriptExtensions = []string{".cpp"}

// HeaderExtensions are the extensions tracked as build cache headers
var HeaderExtensions = []string{".h", ".hpp", ".hxx"}

// Header is a header file tracked in aggregate by the build cache
type Header struct {
	Identity string
	Path     string
	Hash     string
}

// DiscoverOptions controls project discovery
type DiscoverOptions struct {
	// Exclude holds glob patterns, relative to the root, of scripts marked unused
	Exclude []string
	// SkipDirs are absolute directories never descended into
	SkipDirs []string
}

// Discover walks root and returns its script units and headers, both sorted by path
func Discover(root string, opts DiscoverOptions) ([]*Unit, []Header, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		if abs, err := filepath.Abs(d); err == nil {
			skip[filepath.Clean(abs)] = true
		}
	}

	var units []*Unit
	var headers []Header

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || skip[filepath.Clean(path)]) {
				return filepath.SkipDir
			}

			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case hasExt(ScriptExtensions, ext):
			u, err := New(path)
			if err != nil {
				return err
			}

			if excluded(root, path, opts.Exclude) {
				u.Category = CategoryUnused
			}

			units = append(units, u)
		case hasExt(HeaderExtensions, ext):
			hash, err := HashFile(path)
			if err != nil {
				return fmt.Errorf("failed to hash header %s: %w", path, err)
			}

			headers = append(headers, Header{Identity: Identity(path), Path: path, Hash: hash})
		}

		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover units: %w", err)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].SourcePath < units[j].SourcePath })
	sort.Slice(headers, func(i, j int) bool { return headers[i].Path < headers[j].Path })

	return units, headers, nil
}

func hasExt(list []string, ext string) bool {
	for _, e := range list {
		if e == ext {
			return true
		}
	}

	return false
}

func excluded(root, path string, patterns []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}

		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
	}

	return false
}
