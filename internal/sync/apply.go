package sync

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// applyPlan executes the four plan phases strictly in order: directories
// must exist before files are copied into them, and files inside a
// directory must be gone before the emptied directory is removed.
// Directory creation and deletion run sequentially because their
// correctness depends on (reverse) pre-order; file deletes and file
// copies are independent of each other and run on a bounded worker pool.
// The returned summary counts only operations that succeeded.
func (e *Engine) applyPlan(ctx context.Context, plan *Plan) Summary {
	return Summary{
		CreatedDirs:  e.createDirs(plan.CreateDirs),
		DeletedFiles: e.deleteFiles(ctx, plan.DeleteFiles),
		DeletedDirs:  e.deleteDirs(plan.DeleteDirs),
		CopiedFiles:  e.copyFiles(ctx, plan.CopyFiles),
	}
}

func (e *Engine) createDirs(dirs []string) int {
	created := 0
	for _, rel := range dirs {
		abs := filepath.Join(e.cfg.Paths.Replica, rel)

		// Re-check right before creating: the directory may have
		// appeared between snapshot and apply.
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			continue
		}

		if err := os.Mkdir(abs, 0755); err != nil {
			e.warnOp("create directory", abs, err)
			continue
		}
		e.logger.Info("created directory", "path", abs)
		created++
	}
	return created
}

func (e *Engine) deleteFiles(ctx context.Context, files []string) int {
	var g errgroup.Group
	g.SetLimit(e.cfg.Sync.Workers)
	var deleted atomic.Int64

	for _, rel := range files {
		abs := filepath.Join(e.cfg.Paths.Replica, rel)
		g.Go(func() error {
			if ctx.Err() != nil {
				// Shutdown requested: stop dispatching new work,
				// in-flight operations finish on their own.
				return nil
			}
			if err := os.Remove(abs); err != nil {
				e.warnOp("delete file", abs, err)
				return nil
			}
			e.logger.Info("deleted file", "path", abs)
			deleted.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(deleted.Load())
}

func (e *Engine) deleteDirs(dirs []string) int {
	deleted := 0
	for _, rel := range dirs {
		abs := filepath.Join(e.cfg.Paths.Replica, rel)
		if err := os.Remove(abs); err != nil {
			e.warnOp("delete directory", abs, err)
			continue
		}
		e.logger.Info("deleted directory", "path", abs)
		deleted++
	}
	return deleted
}

func (e *Engine) copyFiles(ctx context.Context, files []string) int {
	var g errgroup.Group
	g.SetLimit(e.cfg.Sync.Workers)
	var copied atomic.Int64

	for _, rel := range files {
		from := filepath.Join(e.cfg.Paths.Source, rel)
		to := filepath.Join(e.cfg.Paths.Replica, rel)
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := copyFile(from, to); err != nil {
				e.warnOp("copy file", from, err)
				return nil
			}
			e.logger.Info("copied file", "from", from, "to", to)
			copied.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(copied.Load())
}

// copyFile copies a file from src to dst with atomic replace, preserving
// mode and modification time. An interrupted copy leaves only a temp file
// behind; the next cycle's digest comparison re-copies the real target.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".dirsyncd-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(srcInfo.Mode()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Chtimes(tmpPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

// warnOp logs one recoverable per-operation failure. Nothing here aborts
// sibling operations or the cycle; the entry is retried next cycle.
func (e *Engine) warnOp(op, path string, err error) {
	switch {
	case os.IsPermission(err):
		e.logger.Warn("cannot "+op+": permission denied", "path", path)
	case os.IsNotExist(err):
		e.logger.Warn("cannot "+op+": entry was moved, deleted or renamed during synchronization", "path", path)
	default:
		e.logger.Warn("cannot "+op, "path", path, "error", err)
	}
}
