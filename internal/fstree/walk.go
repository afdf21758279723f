package fstree

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Entry is one regular file discovered under a walk root.
type Entry struct {
	Rel string // path relative to the walk root
	Abs string // absolute path on disk
}

// Walk enumerates all regular files and directories under root.
// Directories are returned in pre-order: a parent always appears before
// anything nested inside it. Symlinks, sockets and other non-regular
// entries are ignored. A single unreadable or vanished entry is logged
// as a warning and skipped; it never aborts the traversal.
func Walk(root string, logger *slog.Logger) ([]Entry, []string) {
	var files []Entry
	var dirs []string
	walkDir(root, "", logger, &files, &dirs)
	return files, dirs
}

func walkDir(abs, rel string, logger *slog.Logger, files *[]Entry, dirs *[]string) {
	entries, err := os.ReadDir(abs)
	if err != nil {
		// ReadDir may return entries read before the error; keep them.
		warnEntry(logger, "cannot list directory", abs, err)
	}

	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "" {
			childRel = filepath.Join(rel, entry.Name())
		}
		childAbs := filepath.Join(abs, entry.Name())

		info, err := entry.Info()
		if err != nil {
			// Entry disappeared between listing and stat.
			warnEntry(logger, "cannot stat entry", childAbs, err)
			continue
		}

		switch mode := info.Mode(); {
		case mode.IsDir():
			*dirs = append(*dirs, childRel)
			walkDir(childAbs, childRel, logger, files, dirs)
		case mode.IsRegular():
			*files = append(*files, Entry{Rel: childRel, Abs: childAbs})
		}
	}
}

func warnEntry(logger *slog.Logger, msg, path string, err error) {
	switch {
	case os.IsPermission(err):
		logger.Warn(msg+": permission denied", "path", path)
	case os.IsNotExist(err):
		logger.Warn(msg+": entry was moved, deleted or renamed during synchronization", "path", path)
	default:
		logger.Warn(msg, "path", path, "error", err)
	}
}
