package fstree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikat/dirsyncd/internal/testutil"
)

func TestTake(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"folder/a.txt": "alpha",
		"folder/b.txt": "beta",
		"empty/":       "",
	})

	snap := Take(root, HashBlake2b, 4, testLogger())

	assert.Equal(t, root, snap.Root)
	assert.Equal(t, []string{"empty", "folder"}, snap.Dirs)
	require.Len(t, snap.Files, 2)
	assert.NotEqual(t, Undefined, snap.Files[filepath.Join("folder", "a.txt")])
	assert.NotEqual(t, Undefined, snap.Files[filepath.Join("folder", "b.txt")])
	assert.NotEqual(t,
		snap.Files[filepath.Join("folder", "a.txt")],
		snap.Files[filepath.Join("folder", "b.txt")])
}

func TestTakePair_EqualContentEqualDigests(t *testing.T) {
	source := t.TempDir()
	replica := t.TempDir()
	testutil.WriteTree(t, source, map[string]string{"file.txt": "Sample content"})
	testutil.WriteTree(t, replica, map[string]string{"file.txt": "Sample content"})

	src, rep := TakePair(source, replica, HashBlake2b, 4, testLogger())

	require.Contains(t, src.Files, "file.txt")
	require.Contains(t, rep.Files, "file.txt")
	assert.Equal(t, src.Files["file.txt"], rep.Files["file.txt"])
}

func TestTakePair_ManyFiles(t *testing.T) {
	// More files than workers on both sides; every file must end up with
	// a defined digest.
	source := t.TempDir()
	replica := t.TempDir()
	entries := make(map[string]string)
	for i := 0; i < 50; i++ {
		entries[filepath.Join("dir", string(rune('a'+i%26))+".txt")] = "content"
	}
	testutil.WriteTree(t, source, entries)
	testutil.WriteTree(t, replica, entries)

	src, rep := TakePair(source, replica, HashBlake2b, 3, testLogger())

	assert.Len(t, src.Files, 26)
	assert.Len(t, rep.Files, 26)
	for rel, digest := range src.Files {
		assert.NotEqual(t, Undefined, digest, rel)
		assert.Equal(t, digest, rep.Files[rel], rel)
	}
}

func TestTake_UnreadableFileGetsUndefinedDigest(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks are bypassed")
	}

	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"ok.txt":     "fine",
		"secret.txt": "hidden",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "secret.txt"), 0000))

	snap := Take(root, HashBlake2b, 4, testLogger())

	assert.NotEqual(t, Undefined, snap.Files["ok.txt"])
	assert.Equal(t, Undefined, snap.Files["secret.txt"])
}
