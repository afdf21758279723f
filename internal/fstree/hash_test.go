package fstree

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestHashFile_KnownVectors(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "abc.txt", []byte("abc"))

	for _, tc := range []struct {
		algorithm string
		want      Digest
	}{
		{
			algorithm: HashBlake2b,
			want: "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d1" +
				"7d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923",
		},
		{
			algorithm: HashSHA256,
			want:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	} {
		t.Run(tc.algorithm, func(t *testing.T) {
			got, err := HashFile(path, tc.algorithm)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHashFile_ContentSensitivity(t *testing.T) {
	tmpDir := t.TempDir()
	a := writeFile(t, tmpDir, "a.txt", []byte("test content"))
	b := writeFile(t, tmpDir, "b.txt", []byte("test content"))
	c := writeFile(t, tmpDir, "c.txt", []byte("different content"))

	hashA, err := HashFile(a, HashBlake2b)
	require.NoError(t, err)
	hashB, err := HashFile(b, HashBlake2b)
	require.NoError(t, err)
	hashC, err := HashFile(c, HashBlake2b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB, "equal content must produce equal digests")
	assert.NotEqual(t, hashA, hashC, "different content must produce different digests")
}

func TestHashFile_BlockBoundaries(t *testing.T) {
	// Files around the streaming block size must hash the same as a
	// reference over the full content.
	tmpDir := t.TempDir()

	for _, size := range []int{0, 1, hashBlockSize - 1, hashBlockSize, hashBlockSize + 1, 3 * hashBlockSize} {
		content := bytes.Repeat([]byte{0x5a}, size)
		path := writeFile(t, tmpDir, "block.bin", content)

		got, err := HashFile(path, HashBlake2b)
		require.NoError(t, err, "size %d", size)

		sum := blake2b.Sum512(content)
		want := Digest(hex.EncodeToString(sum[:]))
		assert.Equal(t, want, got, "size %d", size)
	}
}

func TestHashFile_MissingFile(t *testing.T) {
	digest, err := HashFile(filepath.Join(t.TempDir(), "gone.txt"), HashBlake2b)

	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, Undefined, digest)
}

func TestHashFile_UnknownAlgorithm(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "a.txt", []byte("x"))

	_, err := HashFile(path, "md4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown hash algorithm")
}
