package unit

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Identity returns the stable identity of a source path.
// The path is made absolute and cleaned so the same file always maps to the same identity.
func Identity(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	path = filepath.ToSlash(filepath.Clean(path))

	sum := xxhash.Sum64String(path)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(sum >> (56 - 8*i))
	}

	return hex.EncodeToString(buf[:])
}

// HashBytes creates a hash of in-memory content
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
