package toolchain

import (
	"os"
	"path/filepath"
	"strings"
)

// Globalize converts p into an absolute, cleaned path.
// Relative paths are resolved against base; a leading "~" expands to the home directory.
func Globalize(base, p string) string {
	if p == "" {
		return ""
	}

	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}

	if !filepath.IsAbs(p) {
		if base == "" {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
		}

		p = filepath.Join(base, p)
	}

	return filepath.Clean(p)
}

// GlobalizeAll applies Globalize to every path, dropping empty entries
func GlobalizeAll(base string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}

		out = append(out, Globalize(base, p))
	}

	return out
}
