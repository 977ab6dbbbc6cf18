package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnappyCompressor(t *testing.T) {
	t.Run("compress and decompress", func(t *testing.T) {
		compressor := NewSnappyCompressor(0)

		testData := []byte("Hello, this is a test message that will be compressed")

		// Compress
		compressed, err := compressor.Compress(testData)
		require.NoError(t, err)
		assert.NotEqual(t, testData, compressed)
		// Snappy compression may not always result in smaller data for small inputs

		// Decompress
		decompressed, err := compressor.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, testData, decompressed)
	})

	t.Run("max length validation", func(t *testing.T) {
		maxLen := uint64(50)
		compressor := NewSnappyCompressor(maxLen)

		// Create data that will exceed max length when decompressed
		largeData := make([]byte, 100)
		for i := range largeData {
			largeData[i] = byte(i % 256)
		}

		// Compress should succeed
		compressed, err := compressor.Compress(largeData)
		require.NoError(t, err)

		// Decompress should fail due to max length
		_, err = compressor.Decompress(compressed)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds max length")
	})

	t.Run("invalid compressed data", func(t *testing.T) {
		compressor := NewSnappyCompressor(0)

		// Try to decompress invalid data
		invalidData := []byte{0xFF, 0xFF, 0xFF, 0xFF}
		_, err := compressor.Decompress(invalidData)
		assert.Error(t, err)
	})

	t.Run("empty data", func(t *testing.T) {
		compressor := NewSnappyCompressor(0)

		// Compress empty data
		compressed, err := compressor.Compress([]byte{})
		require.NoError(t, err)

		// Decompress
		decompressed, err := compressor.Decompress(compressed)
		require.NoError(t, err)
		assert.Empty(t, decompressed)
	})

	t.Run("max length getter", func(t *testing.T) {
		maxLen := uint64(1024 * 1024)
		compressor := NewSnappyCompressor(maxLen)
		assert.Equal(t, maxLen, compressor.MaxLength())

		// Zero max length
		compressor2 := NewSnappyCompressor(0)
		assert.Equal(t, uint64(0), compressor2.MaxLength())
	})
}

func TestStore_SaveLoad(t *testing.T) {
	store := NewStore(logrus.New(), t.TempDir(), 0)

	// State dumps are JSON blobs; a repetitive payload compresses well.
	data := []byte(`{"accounts":{"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266":{"balance":"0x21e19e0c9bab2400000","nonce":0}}}`)

	require.NoError(t, store.Save("base", data))

	loaded, err := store.Load("base")
	require.NoError(t, err)
	assert.Equal(t, data, loaded)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(logrus.New(), t.TempDir(), 0)

	require.NoError(t, store.Save("base", []byte("first")))
	require.NoError(t, store.Save("base", []byte("second")))

	loaded, err := store.Load("base")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), loaded)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(logrus.New(), t.TempDir(), 0)

	_, err := store.Load("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestStore_LoadRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(logrus.New(), dir, 0)

	// A file without the magic prefix is not a snapshot.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale"+fileExtension), []byte("not a snapshot"), 0o644))

	_, err := store.Load("stale")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(logrus.New(), t.TempDir(), 0)

	require.NoError(t, store.Save("base", []byte("data")))
	require.NoError(t, store.Delete("base"))

	_, err := store.Load("base")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	// Deleting again is fine.
	require.NoError(t, store.Delete("base"))
}

func TestStore_RejectsInvalidNames(t *testing.T) {
	store := NewStore(logrus.New(), t.TempDir(), 0)

	tests := []string{
		"",
		"../escape",
		"a/b",
		"a\\b",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			err := store.Save(name, []byte("data"))
			assert.Error(t, err)
		})
	}
}

func TestStore_MaxLength(t *testing.T) {
	store := NewStore(logrus.New(), t.TempDir(), 16)

	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}

	// Saving is unbounded; only loading enforces the limit.
	require.NoError(t, store.Save("big", data))

	_, err := store.Load("big")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds max length")
}
