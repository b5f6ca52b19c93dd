// Package cache provides the build cache ledger used for incremental compilation.
//
// The ledger records the content hash of every unit compiled into the module and
// the content hash of every header. Headers are tracked in aggregate only: if any
// header hash or the header count changes, every unit record is invalidated and
// the next build recompiles everything.
//
// The ledger file is read once at the start of a build and rewritten once after a
// successful link. In between, compile results are collected in memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Norgate-AV/spbuild/internal/unit"
)

// NoHash is the sentinel recorded for invalidated units
const NoHash = "0"

// LockTimeout bounds how long a build waits for another process holding the ledger
var LockTimeout = 10 * time.Second

// ErrCorrupt is returned when the ledger file cannot be parsed
var ErrCorrupt = errors.New("failed to parse build cache")

// Record is the on-disk ledger document
type Record struct {
	// Headers maps header identity to content hash
	Headers map[string]string `json:"Headers"`
	// HeaderCount is the number of headers seen by the last build
	HeaderCount int `json:"HeaderCount"`
	// Modules maps unit identity to content hash
	Modules map[string]string `json:"Modules"`
	// Proxies maps generated file base names to original source paths
	Proxies map[string]string `json:"Proxies"`
}

func newRecord() Record {
	return Record{
		Headers: map[string]string{},
		Modules: map[string]string{},
		Proxies: map[string]string{},
	}
}

// Ledger is a loaded build cache
type Ledger struct {
	mu       sync.Mutex
	path     string
	rec      Record
	compiled map[string]string
}

// Load reads the ledger at path. A missing file is created empty.
func Load(path string) (*Ledger, error) {
	l := &Ledger{
		path:     path,
		rec:      newRecord(),
		compiled: map[string]string{},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	lock, err := acquire(path)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read build cache: %w", err)
		}

		if err := writeRecord(path, l.rec); err != nil {
			return nil, err
		}

		return l, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorrupt, path, err)
	}

	l.rec = normalize(rec)

	return l, nil
}

// New creates an empty in-memory ledger bound to path
func New(path string) *Ledger {
	return &Ledger{path: path, rec: newRecord(), compiled: map[string]string{}}
}

// Path returns the ledger file path
func (l *Ledger) Path() string {
	return l.path
}

// UnitUnchanged returns true if the unit is recorded with its current hash
func (l *Ledger) UnitUnchanged(u *unit.Unit) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash, ok := l.rec.Modules[u.Identity]
	return ok && hash != NoHash && hash == u.Hash
}

// Pending returns the units that need compilation, preserving order
func (l *Ledger) Pending(units []*unit.Unit) []*unit.Unit {
	var out []*unit.Unit
	for _, u := range units {
		if !l.UnitUnchanged(u) {
			out = append(out, u)
		}
	}

	return out
}

// HeadersChanged returns true if the header count or any header hash differs from the record
func (l *Ledger) HeadersChanged(headers []unit.Header) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(headers) != l.rec.HeaderCount {
		return true
	}

	for _, h := range headers {
		if recorded, ok := l.rec.Headers[h.Identity]; !ok || recorded != h.Hash {
			return true
		}
	}

	return false
}

// InvalidateAll sets every recorded unit hash to NoHash
func (l *Ledger) InvalidateAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id := range l.rec.Modules {
		l.rec.Modules[id] = NoHash
	}
}

// Record notes a successfully compiled unit. Safe for concurrent use.
func (l *Ledger) Record(u *unit.Unit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.compiled[u.Identity] = u.Hash
}

// AddProxy maps a generated file base name to its original source path
func (l *Ledger) AddProxy(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rec.Proxies[name] = source
}

// Proxies returns a copy of the proxy map
func (l *Ledger) Proxies() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]string, len(l.rec.Proxies))
	for k, v := range l.rec.Proxies {
		out[k] = v
	}

	return out
}

// Covers returns true if the recorded units are exactly units, with matching hashes
func (l *Ledger) Covers(units []*unit.Unit) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(units) != len(l.rec.Modules) {
		return false
	}

	for _, u := range units {
		if hash, ok := l.rec.Modules[u.Identity]; !ok || hash == NoHash || hash != u.Hash {
			return false
		}
	}

	return true
}

// Snapshot returns a copy of the current record
func (l *Ledger) Snapshot() Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return copyRecord(l.rec)
}

// Commit rewrites the ledger at path.
// Units compiled during this build take their new hash, other listed units keep
// their recorded hash and units not listed are dropped along with their proxies.
func (l *Ledger) Commit(units []*unit.Unit, headers []unit.Header, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if path == "" {
		path = l.path
	}

	modules := make(map[string]string, len(units))
	for _, u := range units {
		if hash, ok := l.compiled[u.Identity]; ok {
			modules[u.Identity] = hash
		} else if hash, ok := l.rec.Modules[u.Identity]; ok {
			modules[u.Identity] = hash
		}
	}

	proxies := make(map[string]string, len(units))
	for _, u := range units {
		if u.CachePath == "" {
			continue
		}

		name := filepath.Base(u.CachePath)
		if source, ok := l.rec.Proxies[name]; ok {
			proxies[name] = source
		}
	}

	hdrs := make(map[string]string, len(headers))
	for _, h := range headers {
		hdrs[h.Identity] = h.Hash
	}

	rec := Record{
		Headers:     hdrs,
		HeaderCount: len(headers),
		Modules:     modules,
		Proxies:     proxies,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	lock, err := acquire(path)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if err := writeRecord(path, rec); err != nil {
		return err
	}

	l.rec = rec
	l.compiled = map[string]string{}
	l.path = path

	return nil
}

// acquire takes the cross-process lock guarding the ledger file
func acquire(path string) (*flock.Flock, error) {
	lock := flock.New(path + ".lock")

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	ok, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to lock build cache: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("failed to lock build cache: %s is busy", path)
	}

	return lock, nil
}

// writeRecord writes rec to a temporary file and renames it over path
func writeRecord(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode build cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write build cache: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write build cache: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write build cache: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace build cache: %w", err)
	}

	return nil
}

func normalize(rec Record) Record {
	if rec.Headers == nil {
		rec.Headers = map[string]string{}
	}

	if rec.Modules == nil {
		rec.Modules = map[string]string{}
	}

	if rec.Proxies == nil {
		rec.Proxies = map[string]string{}
	}

	return rec
}

func copyRecord(rec Record) Record {
	out := newRecord()
	out.HeaderCount = rec.HeaderCount

	for k, v := range rec.Headers {
		out.Headers[k] = v
	}

	for k, v := range rec.Modules {
		out.Modules[k] = v
	}

	for k, v := range rec.Proxies {
		out.Proxies[k] = v
	}

	return out
}
