// Package loader loads built modules into the running process and hot-swaps them.
//
// A module exports two entry points, ScriptModuleInitialize and
// ScriptModuleShutdown, both taking a call mode and returning zero on success.
// The controller keeps at most one module per slot. Replacing a module shuts the
// old one down and releases its handle before the new one is opened.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/Norgate-AV/spbuild/internal/metadata"
)

var log = commonlog.GetLogger("spbuild.loader")

const (
	InitializeSymbol = "ScriptModuleInitialize"
	ShutdownSymbol   = "ScriptModuleShutdown"
)

// Mode tells a module whether a call is real or a dry validation call
type Mode int32

const (
	ModeReal    Mode = 0
	ModeVirtual Mode = 1
)

func (m Mode) String() string {
	if m == ModeVirtual {
		return "virtual"
	}

	return "real"
}

var (
	ErrEntryPoint = errors.New("entry point not found")
	ErrNotLoaded  = errors.New("no module loaded")
	ErrClosed     = errors.New("loader is closed")
)

// Library is an opened native module
type Library interface {
	// Call resolves symbol and invokes it with mode
	Call(symbol string, mode Mode) (int32, error)
	// Close releases the OS handle
	Close() error
}

// Opener opens native modules
type Opener interface {
	Open(path string) (Library, error)
}

// Host is notified when modules come and go
type Host interface {
	Boot(slot string, m *Module)
	Shutdown(slot string, m *Module)
}

// Module is a loaded module
type Module struct {
	Slot string
	// Path is the module as built
	Path string
	// LoadedFrom is the file actually opened, a shadow copy when shadowing is enabled
	LoadedFrom string
	LoadedAt   time.Time
	// Metadata is nil when the module has no sidecar
	Metadata *metadata.Table

	lib Library
}

// Lookup finds a bindable symbol in the module's metadata
func (m *Module) Lookup(name string) (metadata.Entry, bool) {
	if m.Metadata == nil {
		return metadata.Entry{}, false
	}

	return m.Metadata.Lookup(name)
}

// Options configures a Controller
type Options struct {
	// ShadowDir, when set, receives a private copy of every module before it is
	// opened so the build can overwrite the original while it is loaded
	ShadowDir string
}

// Controller owns the loaded modules. Loads and unloads are serialized.
type Controller struct {
	mu      sync.Mutex
	opener  Opener
	host    Host
	opts    Options
	modules map[string]*Module
	closed  bool
}

// New creates a controller. A nil host is replaced by one that only logs.
func New(opener Opener, host Host, opts Options) *Controller {
	if host == nil {
		host = LogHost{}
	}

	return &Controller{
		opener:  opener,
		host:    host,
		opts:    opts,
		modules: map[string]*Module{},
	}
}

// Load loads path into slot, replacing the module currently there
func (c *Controller) Load(slot, path string) (*Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if old, ok := c.modules[slot]; ok {
		log.Infof("replacing module in slot %s", slot)
		if err := c.unload(old); err != nil {
			log.Warningf("%s", err.Error())
		}
	}

	m := &Module{Slot: slot, Path: path, LoadedFrom: path}

	table, err := metadata.ReadFile(path + metadata.SidecarExt)
	if err == nil {
		m.Metadata = table
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warningf("failed to read metadata for %s: %v", filepath.Base(path), err)
	}

	if c.opts.ShadowDir != "" {
		shadow, err := shadowCopy(path, c.opts.ShadowDir)
		if err != nil {
			return nil, err
		}

		m.LoadedFrom = shadow
	}

	lib, err := c.opener.Open(m.LoadedFrom)
	if err != nil {
		c.removeShadow(m)
		return nil, fmt.Errorf("failed to load module %s: %w", path, err)
	}

	m.lib = lib

	if err := call(lib, InitializeSymbol, ModeReal); err != nil {
		lib.Close()
		c.removeShadow(m)
		return nil, fmt.Errorf("failed to initialize module %s: %w", path, err)
	}

	m.LoadedAt = time.Now()
	c.modules[slot] = m
	c.host.Boot(slot, m)

	log.Infof("loaded %s into slot %s", filepath.Base(path), slot)

	return m, nil
}

// Unload shuts down and releases the module in slot
func (c *Controller) Unload(slot string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.modules[slot]
	if !ok {
		return fmt.Errorf("%w in slot %s", ErrNotLoaded, slot)
	}

	return c.unload(m)
}

// Current returns the module in slot
func (c *Controller) Current(slot string) (*Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.modules[slot]
	return m, ok
}

// Validate opens path and runs both entry points in virtual mode, leaving
// nothing loaded
func (c *Controller) Validate(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lib, err := c.opener.Open(path)
	if err != nil {
		return fmt.Errorf("failed to load module %s: %w", path, err)
	}
	defer lib.Close()

	if err := call(lib, InitializeSymbol, ModeVirtual); err != nil {
		return fmt.Errorf("failed to validate module %s: %w", path, err)
	}

	if err := call(lib, ShutdownSymbol, ModeVirtual); err != nil {
		return fmt.Errorf("failed to validate module %s: %w", path, err)
	}

	return nil
}

// Close unloads every module. The controller rejects loads afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, m := range c.modules {
		if err := c.unload(m); err != nil {
			errs = append(errs, err)
		}
	}

	c.closed = true

	return errors.Join(errs...)
}

// unload runs the shutdown sequence for m. The caller holds c.mu.
func (c *Controller) unload(m *Module) error {
	delete(c.modules, m.Slot)

	shutdownErr := call(m.lib, ShutdownSymbol, ModeReal)
	c.host.Shutdown(m.Slot, m)

	closeErr := m.lib.Close()
	c.removeShadow(m)

	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down module %s: %w", m.Path, shutdownErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to release module %s: %w", m.Path, closeErr)
	}

	return nil
}

func (c *Controller) removeShadow(m *Module) {
	if m.LoadedFrom == m.Path {
		return
	}

	if err := os.Remove(m.LoadedFrom); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debugf("failed to remove shadow copy %s: %v", m.LoadedFrom, err)
	}
}

func call(lib Library, symbol string, mode Mode) error {
	rc, err := lib.Call(symbol, mode)
	if err != nil {
		return err
	}

	if rc != 0 {
		return fmt.Errorf("%s (%s) returned %d", symbol, mode, rc)
	}

	return nil
}

// shadowCopy copies path into dir under a unique name keeping its extension
func shadowCopy(path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create shadow directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open module: %w", err)
	}
	defer src.Close()

	name := uuid.NewString() + filepath.Ext(path)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create shadow copy: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to copy module: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to copy module: %w", err)
	}

	return dst.Name(), nil
}

// LogHost is a Host that only logs lifecycle events
type LogHost struct{}

func (LogHost) Boot(slot string, m *Module) {
	entries := 0
	if m.Metadata != nil {
		entries = len(m.Metadata.Entries)
	}

	log.Infof("boot %s: %s (%d bindable symbols)", slot, filepath.Base(m.Path), entries)
}

func (LogHost) Shutdown(slot string, m *Module) {
	log.Infof("shutdown %s: %s", slot, filepath.Base(m.Path))
}
