// Package moddb packages a built module and its metadata sidecar into a single
// file and keeps a persistent store of packaged modules.
//
// An envelope is a fixed 64-byte little-endian header followed by the zstd
// compressed concatenation of the module bytes and the metadata bytes.
package moddb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// HeaderSize is the encoded size of Header
const HeaderSize = 64

// Magic identifies an envelope
var Magic = [16]byte{'S', 'P', 'B', 'U', 'I', 'L', 'D', ' ', 'M', 'O', 'D', 'D', 'B', 0x1a, 0x0d, 0x0a}

// Version of the envelope layout written by this package
var Version = [4]byte{1, 0, 0, 0}

// CacheType distinguishes envelopes produced by proprietary and open toolchains
type CacheType uint16

const (
	CacheProprietary CacheType = 1
	CacheOpen        CacheType = 2
)

func (c CacheType) String() string {
	switch c {
	case CacheProprietary:
		return "proprietary"
	case CacheOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	ErrMagic     = errors.New("not a module database file")
	ErrVersion   = errors.New("unsupported module database version")
	ErrTruncated = errors.New("module database file is truncated")
	ErrEmpty     = errors.New("module is empty")
)

// Header is the on-disk envelope header
type Header struct {
	Magic        [16]byte
	ModuleSize   uint64
	MetadataSize uint64
	PayloadSize  uint64
	Ratio        float32
	CacheType    CacheType
	Version      [4]byte
	Reserved     [14]byte
}

// Envelope is a decoded module database file
type Envelope struct {
	Header   Header
	Module   []byte
	Metadata []byte
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// Encode packages module and metadata
func Encode(module, metadata []byte, cacheType CacheType) ([]byte, error) {
	if len(module) == 0 {
		return nil, ErrEmpty
	}

	raw := make([]byte, 0, len(module)+len(metadata))
	raw = append(raw, module...)
	raw = append(raw, metadata...)

	payload := encoder.EncodeAll(raw, nil)

	h := Header{
		Magic:        Magic,
		ModuleSize:   uint64(len(module)),
		MetadataSize: uint64(len(metadata)),
		PayloadSize:  uint64(len(payload)),
		Ratio:        float32(len(payload)) / float32(len(raw)),
		CacheType:    cacheType,
		Version:      Version,
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(payload)))
	if err := binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	buf.Write(payload)

	return buf.Bytes(), nil
}

// ReadHeader decodes and validates the header at the start of data
func ReadHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, ErrTruncated
	}

	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("failed to read header: %w", err)
	}

	if h.Magic != Magic {
		return h, ErrMagic
	}

	if h.Version[0] != Version[0] {
		return h, fmt.Errorf("%w: %d.%d", ErrVersion, h.Version[0], h.Version[1])
	}

	return h, nil
}

// Decode validates and unpacks an envelope
func Decode(data []byte) (*Envelope, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	payload := data[HeaderSize:]
	if uint64(len(payload)) != h.PayloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrTruncated, len(payload), h.PayloadSize)
	}

	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}

	if uint64(len(raw)) != h.ModuleSize+h.MetadataSize {
		return nil, fmt.Errorf("%w: payload holds %d bytes, header says %d", ErrTruncated, len(raw), h.ModuleSize+h.MetadataSize)
	}

	return &Envelope{
		Header:   h,
		Module:   raw[:h.ModuleSize],
		Metadata: raw[h.ModuleSize:],
	}, nil
}

// WriteFile encodes an envelope to path, replacing any existing file
func WriteFile(path string, module, metadata []byte, cacheType CacheType) error {
	data, err := Encode(module, metadata, cacheType)
	if err != nil {
		return err
	}

	return writeAtomic(path, data)
}

// ReadFile decodes the envelope at path
func ReadFile(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module database: %w", err)
	}

	return Decode(data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
