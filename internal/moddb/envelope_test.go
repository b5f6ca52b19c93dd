package moddb

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModule() []byte {
	return bytes.Repeat([]byte("MZ\x90\x00module-bytes"), 512)
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, HeaderSize, binary.Size(Header{}))
}

func TestEncodeDecode(t *testing.T) {
	module := testModule()
	metadata := []byte("metadata-sidecar")

	data, err := Encode(module, metadata, CacheProprietary)
	require.NoError(t, err)

	// Layout is fixed: magic first, sizes little-endian after it
	assert.Equal(t, Magic[:], data[:16])
	assert.Equal(t, uint64(len(module)), binary.LittleEndian.Uint64(data[16:24]))
	assert.Equal(t, uint64(len(metadata)), binary.LittleEndian.Uint64(data[24:32]))
	assert.Equal(t, uint64(len(data)-HeaderSize), binary.LittleEndian.Uint64(data[32:40]))
	assert.Equal(t, uint16(CacheProprietary), binary.LittleEndian.Uint16(data[44:46]))
	assert.Equal(t, Version[:], data[46:50])

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, module, env.Module)
	assert.Equal(t, metadata, env.Metadata)
	assert.Equal(t, CacheProprietary, env.Header.CacheType)
	assert.Less(t, env.Header.Ratio, float32(1))
	assert.Greater(t, env.Header.Ratio, float32(0))
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := Encode(testModule(), []byte("m"), CacheOpen)
	require.NoError(t, err)

	b, err := Encode(testModule(), []byte("m"), CacheOpen)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEncode_EmptyModule(t *testing.T) {
	_, err := Encode(nil, []byte("m"), CacheOpen)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDecode_Errors(t *testing.T) {
	valid, err := Encode(testModule(), []byte("m"), CacheOpen)
	require.NoError(t, err)

	tests := []struct {
		name string
		data func() []byte
		want error
	}{
		{
			name: "short",
			data: func() []byte { return valid[:10] },
			want: ErrTruncated,
		},
		{
			name: "bad magic",
			data: func() []byte {
				d := bytes.Clone(valid)
				d[0] = 'X'
				return d
			},
			want: ErrMagic,
		},
		{
			name: "future version",
			data: func() []byte {
				d := bytes.Clone(valid)
				d[46] = 9
				return d
			},
			want: ErrVersion,
		},
		{
			name: "truncated payload",
			data: func() []byte { return valid[:len(valid)-3] },
			want: ErrTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ScriptModule.spdb")

	require.NoError(t, WriteFile(path, testModule(), []byte("meta"), CacheOpen))

	env, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testModule(), env.Module)
	assert.Equal(t, []byte("meta"), env.Metadata)
	assert.Equal(t, "open", env.Header.CacheType.String())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.spdb"))
	assert.Error(t, err)
}
