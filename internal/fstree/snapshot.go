package fstree

import (
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Snapshot is a point-in-time view of one directory tree, taken once per
// synchronization cycle and discarded afterwards. Dirs preserves discovery
// order, which is a pre-order of the tree.
type Snapshot struct {
	Root  string
	Dirs  []string
	Files map[string]Digest

	entries []Entry // walked files, consumed by the hash workers
}

// Take walks root and hashes every discovered file with a bounded worker
// pool. Files that cannot be hashed are recorded with an Undefined digest.
func Take(root, algorithm string, workers int, logger *slog.Logger) *Snapshot {
	snap := newSnapshot(root, logger)

	var g errgroup.Group
	g.SetLimit(poolSize(workers))
	var mu sync.Mutex
	snap.hashFiles(&g, &mu, algorithm, logger)
	_ = g.Wait()

	return snap
}

// TakePair snapshots the source and replica trees of one cycle. The files
// of both trees share a single bounded hashing pool, so total hashing
// concurrency stays capped at workers no matter how the files are split
// between the two sides.
func TakePair(sourceRoot, replicaRoot, algorithm string, workers int, logger *slog.Logger) (*Snapshot, *Snapshot) {
	source := newSnapshot(sourceRoot, logger)
	replica := newSnapshot(replicaRoot, logger)

	var g errgroup.Group
	g.SetLimit(poolSize(workers))
	var mu sync.Mutex
	source.hashFiles(&g, &mu, algorithm, logger)
	replica.hashFiles(&g, &mu, algorithm, logger)
	_ = g.Wait()

	return source, replica
}

func newSnapshot(root string, logger *slog.Logger) *Snapshot {
	files, dirs := Walk(root, logger)
	return &Snapshot{
		Root:    root,
		Dirs:    dirs,
		Files:   make(map[string]Digest, len(files)),
		entries: files,
	}
}

func (s *Snapshot) hashFiles(g *errgroup.Group, mu *sync.Mutex, algorithm string, logger *slog.Logger) {
	for _, entry := range s.entries {
		entry := entry
		g.Go(func() error {
			digest, err := HashFile(entry.Abs, algorithm)
			if err != nil {
				warnEntry(logger, "cannot read file", entry.Abs, err)
				digest = Undefined
			}
			mu.Lock()
			s.Files[entry.Rel] = digest
			mu.Unlock()
			return nil
		})
	}
}

func poolSize(workers int) int {
	if workers < 1 {
		return 1
	}
	return workers
}
