package sync

import (
	"sort"

	"github.com/replikat/dirsyncd/internal/fstree"
)

// Plan lists the filesystem operations that converge the replica tree to
// the source tree, derived from the two snapshots of one cycle.
//
// CreateDirs preserves the source's pre-order, so a parent is always
// created before its children. DeleteDirs is the replica's pre-order
// reversed, so a directory is only removed after everything nested in it.
type Plan struct {
	CreateDirs  []string
	DeleteFiles []string
	DeleteDirs  []string
	CopyFiles   []string
}

// BuildPlan compares the source and replica snapshots. Files and
// directories live in disjoint namespaces, so a path that changed type
// between cycles needs no special handling: the old type's entry lands in
// a delete list and the new type's entry in a create/copy list.
func BuildPlan(source, replica *fstree.Snapshot) *Plan {
	plan := &Plan{}

	sourceDirs := make(map[string]struct{}, len(source.Dirs))
	for _, dir := range source.Dirs {
		sourceDirs[dir] = struct{}{}
	}
	replicaDirs := make(map[string]struct{}, len(replica.Dirs))
	for _, dir := range replica.Dirs {
		replicaDirs[dir] = struct{}{}
	}

	// Directories present in the source but not in the replica snapshot.
	// Existence is verified again right before each mkdir, in case a
	// directory appeared between snapshot and apply.
	for _, dir := range source.Dirs {
		if _, ok := replicaDirs[dir]; !ok {
			plan.CreateDirs = append(plan.CreateDirs, dir)
		}
	}

	// Files present only in the replica.
	for rel := range replica.Files {
		if _, ok := source.Files[rel]; !ok {
			plan.DeleteFiles = append(plan.DeleteFiles, rel)
		}
	}

	// Directories present only in the replica, innermost first.
	for i := len(replica.Dirs) - 1; i >= 0; i-- {
		dir := replica.Dirs[i]
		if _, ok := sourceDirs[dir]; !ok {
			plan.DeleteDirs = append(plan.DeleteDirs, dir)
		}
	}

	// Files whose content differs, or which the replica lacks entirely.
	// Equal digests skip the copy even when modification times differ.
	for rel, digest := range source.Files {
		if digest == fstree.Undefined {
			// Unreadable source file: cannot be compared or copied
			// safely, left for the next cycle.
			continue
		}
		if replica.Files[rel] != digest {
			plan.CopyFiles = append(plan.CopyFiles, rel)
		}
	}

	// Map iteration order is random; sort the independent phases so logs
	// and tests are deterministic.
	sort.Strings(plan.DeleteFiles)
	sort.Strings(plan.CopyFiles)

	return plan
}

// Empty reports whether the plan contains no operations at all.
func (p *Plan) Empty() bool {
	return len(p.CreateDirs) == 0 && len(p.DeleteFiles) == 0 &&
		len(p.DeleteDirs) == 0 && len(p.CopyFiles) == 0
}
