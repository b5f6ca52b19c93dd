package moddb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// bucketName is the BoltDB bucket holding store entries
	bucketName = "modules"

	dbFile       = "store.db"
	artifactsDir = "artifacts"
)

// Entry describes a stored module
type Entry struct {
	// Key identifies the module slot: backend, module name and build flavor
	Key string `json:"key"`

	// Hash is the SHA-256 of the envelope, naming its artifact file
	Hash string `json:"hash"`

	Module    string    `json:"module"`
	Backend   string    `json:"backend"`
	Debug     bool      `json:"debug"`
	BuildID   string    `json:"build_id"`
	CacheType CacheType `json:"cache_type"`

	ModuleSize   uint64  `json:"module_size"`
	MetadataSize uint64  `json:"metadata_size"`
	PayloadSize  uint64  `json:"payload_size"`
	Ratio        float32 `json:"ratio"`

	Timestamp time.Time `json:"timestamp"`
}

// Key builds the store key of a module
func Key(backend, module string, debug bool) string {
	flavor := "final"
	if debug {
		flavor = "debug"
	}

	return backend + "/" + module + "/" + flavor
}

// Store keeps packaged modules: metadata in BoltDB, envelopes in the filesystem
type Store struct {
	db   *bbolt.DB
	root string
}

// Open opens or creates the store in dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, dbFile), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create store bucket: %w", err)
	}

	return &Store{db: db, root: dir}, nil
}

// Close closes the store database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Put stores an envelope under entry.Key, replacing the previous module of that slot
func (s *Store) Put(entry Entry, envelope []byte) (*Entry, error) {
	h, err := ReadHeader(envelope)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(envelope)
	entry.Hash = hex.EncodeToString(sum[:])
	entry.CacheType = h.CacheType
	entry.ModuleSize = h.ModuleSize
	entry.MetadataSize = h.MetadataSize
	entry.PayloadSize = h.PayloadSize
	entry.Ratio = h.Ratio
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := writeAtomic(s.artifactPath(entry.Hash), envelope); err != nil {
		return nil, fmt.Errorf("failed to store envelope: %w", err)
	}

	var previous Entry
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		if data := b.Get([]byte(entry.Key)); data != nil {
			_ = json.Unmarshal(data, &previous)
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(entry.Key), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store entry: %w", err)
	}

	if previous.Hash != "" && previous.Hash != entry.Hash && !s.referenced(previous.Hash) {
		_ = os.Remove(s.artifactPath(previous.Hash))
	}

	return &entry, nil
}

// Get returns the entry stored under key, or nil on a miss
func (s *Store) Get(key string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}

	if entry.Hash == "" {
		return nil, nil
	}

	return &entry, nil
}

// List returns every stored entry in key order
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list store: %w", err)
	}

	return entries, nil
}

// Load decodes the envelope of a stored entry
func (s *Store) Load(entry *Entry) (*Envelope, error) {
	return ReadFile(s.artifactPath(entry.Hash))
}

// Restore writes the module and metadata of a stored entry into destDir
// and returns their paths
func (s *Store) Restore(entry *Entry, destDir, metadataExt string) (string, string, error) {
	env, err := s.Load(entry)
	if err != nil {
		return "", "", err
	}

	modulePath := filepath.Join(destDir, entry.Module)
	metadataPath := modulePath + metadataExt

	if err := writeAtomic(modulePath, env.Module); err != nil {
		return "", "", fmt.Errorf("failed to restore module: %w", err)
	}

	if err := writeAtomic(metadataPath, env.Metadata); err != nil {
		return "", "", fmt.Errorf("failed to restore metadata: %w", err)
	}

	return modulePath, metadataPath, nil
}

// Clear removes all entries and envelopes
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return err
	}

	if err := os.RemoveAll(filepath.Join(s.root, artifactsDir)); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	return nil
}

// Stats returns the entry count and the total envelope size
func (s *Store) Stats() (int, int64, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	var totalSize int64
	_ = filepath.Walk(filepath.Join(s.root, artifactsDir), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if !info.IsDir() {
			totalSize += info.Size()
		}

		return nil
	})

	return count, totalSize, nil
}

// referenced returns true if any entry still uses the envelope hash
func (s *Store) referenced(hash string) bool {
	entries, err := s.List()
	if err != nil {
		return true
	}

	for _, e := range entries {
		if e.Hash == hash {
			return true
		}
	}

	return false
}

func (s *Store) artifactPath(hash string) string {
	return filepath.Join(s.root, artifactsDir, hash+".spdb")
}
