package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// DescriptorFile is the name of the descriptor inside each package directory
const DescriptorFile = "package.toml"

// Descriptor is the package.toml written by the package manager on install
type Descriptor struct {
	ID      string `toml:"id"`
	Version string `toml:"version"`
	Kind    Kind   `toml:"kind"`

	Addon AddonDescriptor `toml:"addon"`
}

// AddonDescriptor holds the add-on specific part of a descriptor
type AddonDescriptor struct {
	Type      AddonType `toml:"type"`
	Includes  []string  `toml:"includes"`
	LibDirs   []string  `toml:"libdirs"`
	Libraries []string  `toml:"libraries"`
	Global    bool      `toml:"global"`
}

// DirManager resolves packages installed under <root>/<kind>/<id>/
type DirManager struct {
	root string
}

// NewDirManager creates a package manager over an install root
func NewDirManager(root string) *DirManager {
	return &DirManager{root: root}
}

// Root returns the install root
func (m *DirManager) Root() string {
	return m.root
}

// ResolveToolchain returns the install root of a compiler package
func (m *DirManager) ResolveToolchain(id string) (string, error) {
	return m.resolve(KindCompiler, id)
}

// ResolveSDK returns the install root of an SDK package
func (m *DirManager) ResolveSDK(id string) (string, error) {
	return m.resolve(KindSDK, id)
}

func (m *DirManager) resolve(kind Kind, id string) (string, error) {
	if m.root == "" || id == "" {
		return "", fmt.Errorf("%s %q: %w", kind, id, ErrNotInstalled)
	}

	dir := filepath.Join(m.root, string(kind), id)
	if _, err := LoadDescriptor(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s %q: %w", kind, id, ErrNotInstalled)
		}

		return "", err
	}

	return Globalize("", dir), nil
}

// Addons lists the installed add-ons, sorted by ID
func (m *DirManager) Addons() ([]Addon, error) {
	if m.root == "" {
		return nil, nil
	}

	base := filepath.Join(m.root, string(KindAddon))
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read add-on directory: %w", err)
	}

	var addons []Addon
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(base, entry.Name())
		desc, err := LoadDescriptor(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // not a package
			}

			return nil, err
		}

		addons = append(addons, desc.toAddon(entry.Name(), dir))
	}

	sort.Slice(addons, func(i, j int) bool { return addons[i].ID < addons[j].ID })

	return addons, nil
}

func (d *Descriptor) toAddon(dirName, dir string) Addon {
	id := d.ID
	if id == "" {
		id = dirName
	}

	typ := d.Addon.Type
	if typ == "" {
		typ = AddonLibrary
	}

	a := Addon{
		ID:        id,
		Dir:       Globalize("", dir),
		Type:      typ,
		Includes:  GlobalizeAll(dir, d.Addon.Includes),
		LibDirs:   GlobalizeAll(dir, d.Addon.LibDirs),
		Libraries: d.Addon.Libraries,
		Global:    d.Addon.Global,
	}

	if typ == AddonHeaderOnly {
		a.LibDirs = nil
		a.Libraries = nil
	}

	return a
}

// LoadDescriptor parses the package.toml inside dir
func LoadDescriptor(dir string) (*Descriptor, error) {
	path := filepath.Join(dir, DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	return &d, nil
}
