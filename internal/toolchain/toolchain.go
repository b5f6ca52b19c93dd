// Package toolchain locates installed compiler, SDK and add-on packages.
//
// Packages are installed by an external package manager; this package only
// consumes the result through the PackageManager contract.
package toolchain

import (
	"errors"
)

// ErrNotInstalled is returned when a requested package is not installed
var ErrNotInstalled = errors.New("package not installed")

// Kind is the type of an installed package
type Kind string

const (
	KindCompiler Kind = "compiler"
	KindSDK      Kind = "sdk"
	KindAddon    Kind = "addon"
)

// AddonType describes what an add-on contributes to a build
type AddonType string

const (
	AddonLibrary    AddonType = "library"
	AddonHeaderOnly AddonType = "header-only"
)

// Addon is an installed add-on package
type Addon struct {
	ID   string
	Dir  string
	Type AddonType

	// Absolute include and library search directories
	Includes []string
	LibDirs  []string

	// Static or import libraries to link
	Libraries []string

	// Global add-ons are loaded on demand (delay-loaded where the linker supports it)
	Global bool
}

// PackageManager resolves installed packages
type PackageManager interface {
	// ResolveToolchain returns the install root of a compiler package
	ResolveToolchain(id string) (string, error)

	// ResolveSDK returns the install root of an SDK package
	ResolveSDK(id string) (string, error)

	// Addons lists the installed add-ons
	Addons() ([]Addon, error)
}
