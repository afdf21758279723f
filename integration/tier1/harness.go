//go:build integration

package tier1

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/replikat/dirsyncd/internal/testutil"
)

const defaultTimeout = 5 * time.Minute

// Harness builds the dirsyncd binary once and runs it against temp
// directory trees.
type Harness struct {
	t       *testing.T
	binPath string
	source  string
	replica string
}

// NewHarness builds the binary and creates fresh source/replica trees
func NewHarness(t *testing.T, ctx context.Context) *Harness {
	t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		t.Fatalf("get project root: %v", err)
	}

	binPath := filepath.Join(t.TempDir(), "dirsyncd")
	t.Logf("Building %s", binPath)

	cmd := exec.CommandContext(ctx, "go", "build", "-o", binPath, "./cmd/dirsyncd")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: t, prefix: "[build] "}
	if err := cmd.Run(); err != nil {
		t.Fatalf("go build: %v", err)
	}

	return &Harness{
		t:       t,
		binPath: binPath,
		source:  t.TempDir(),
		replica: t.TempDir(),
	}
}

// RunSync runs one synchronization cycle and returns combined output
func (h *Harness) RunSync(ctx context.Context, extraArgs ...string) (string, int, error) {
	h.t.Helper()

	args := append([]string{"sync", "-i", h.source, "-o", h.replica}, extraArgs...)
	cmd := exec.CommandContext(ctx, h.binPath, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return out.String(), 0, fmt.Errorf("exec failed: %w", err)
		}
	}

	return out.String(), exitCode, nil
}

// MustSync runs one cycle and fails the test on a non-zero exit
func (h *Harness) MustSync(ctx context.Context, extraArgs ...string) string {
	h.t.Helper()

	out, exitCode, err := h.RunSync(ctx, extraArgs...)
	if err != nil {
		h.t.Fatalf("sync failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("sync exited with code %d\noutput: %s", exitCode, out)
	}
	return out
}

// WriteSource writes a file under the source tree, creating parents
func (h *Harness) WriteSource(path, content string) {
	h.t.Helper()
	writeFile(h.t, filepath.Join(h.source, path), content)
}

// WriteReplica writes a file under the replica tree, creating parents
func (h *Harness) WriteReplica(path, content string) {
	h.t.Helper()
	writeFile(h.t, filepath.Join(h.replica, path), content)
}

// MkdirSource creates a directory under the source tree
func (h *Harness) MkdirSource(path string) {
	h.t.Helper()
	if err := os.MkdirAll(filepath.Join(h.source, path), 0755); err != nil {
		h.t.Fatalf("mkdir source %s: %v", path, err)
	}
}

// RemoveSource removes a file or tree under the source
func (h *Harness) RemoveSource(path string) {
	h.t.Helper()
	if err := os.RemoveAll(filepath.Join(h.source, path)); err != nil {
		h.t.Fatalf("remove source %s: %v", path, err)
	}
}

// ReadReplica reads a file from the replica tree
func (h *Harness) ReadReplica(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(h.replica, path))
	return string(data), err
}

// ReplicaExists checks whether a path exists in the replica tree
func (h *Harness) ReplicaExists(path string) bool {
	_, err := os.Stat(filepath.Join(h.replica, path))
	return err == nil
}

// TreesEqual compares the full source and replica trees: same relative
// paths, same file contents.
func (h *Harness) TreesEqual() error {
	sourceTree, err := listTree(h.source)
	if err != nil {
		return fmt.Errorf("list source: %w", err)
	}
	replicaTree, err := listTree(h.replica)
	if err != nil {
		return fmt.Errorf("list replica: %w", err)
	}

	if len(sourceTree) != len(replicaTree) {
		return fmt.Errorf("entry count differs: source %d, replica %d", len(sourceTree), len(replicaTree))
	}
	for rel, content := range sourceTree {
		got, ok := replicaTree[rel]
		if !ok {
			return fmt.Errorf("missing in replica: %s", rel)
		}
		if got != content {
			return fmt.Errorf("content differs for %s", rel)
		}
	}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// listTree maps relative paths to file contents; directories map to "".
func listTree(root string) (map[string]string, error) {
	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
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
	return tree, err
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}
