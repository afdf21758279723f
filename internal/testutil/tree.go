package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteTree materializes a directory tree under root. Keys ending in "/"
// create empty directories; all other keys create files with the given
// content. Parent directories are created as needed, so callers only
// list leaves:
//
//	testutil.WriteTree(t, root, map[string]string{
//		"folder/subfolder1/subfile.txt": "Subfile content",
//		"folder/subfolder2/":            "",
//		"file.txt":                      "Sample content",
//	})
func WriteTree(t *testing.T, root string, entries map[string]string) {
	t.Helper()

	for rel, content := range entries {
		abs := filepath.Join(root, rel)
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(abs, 0755); err != nil {
				t.Fatalf("mkdir %s: %v", abs, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatalf("mkdir parent of %s: %v", abs, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", abs, err)
		}
	}
}

// ReadTree returns the full contents of a directory tree in WriteTree's
// format: file relative path -> content, plus a "<dir>/" key per
// directory. Comparing two ReadTree results compares both structure and
// content of two trees.
func ReadTree(t *testing.T, root string) map[string]string {
	t.Helper()

	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			tree[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("read tree %s: %v", root, err)
	}
	return tree
}
