package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/replikat/dirsyncd/internal/config"
	"github.com/replikat/dirsyncd/internal/fstree"
)

// Summary counts the operations one cycle actually performed.
type Summary struct {
	CreatedDirs  int           `json:"created_dirs"`
	DeletedFiles int           `json:"deleted_files"`
	DeletedDirs  int           `json:"deleted_dirs"`
	CopiedFiles  int           `json:"copied_files"`
	Took         time.Duration `json:"-"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// Engine performs one synchronization cycle: snapshot both trees, derive
// the action plan, apply it. Beyond the summary of the most recent cycle
// it holds no state; every run re-enumerates and re-hashes both trees
// from scratch.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	dryRun bool

	mu   stdsync.Mutex
	last *Summary
}

// NewEngine creates a new sync engine
func NewEngine(cfg *config.Config, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger,
		dryRun: dryRun,
	}
}

// Run executes one complete synchronization cycle. It blocks until all
// hashing and all planned operations have finished. Per-operation errors
// are logged and never abort the cycle; Run only returns an error when the
// context was cancelled before the cycle could complete.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()

	e.logger.Info("starting synchronization cycle",
		"source", e.cfg.Paths.Source,
		"replica", e.cfg.Paths.Replica,
		"dry_run", e.dryRun)

	source, replica := fstree.TakePair(
		e.cfg.Paths.Source, e.cfg.Paths.Replica,
		e.cfg.Sync.Hash, e.cfg.Sync.Workers, e.logger)

	plan := BuildPlan(source, replica)

	e.logger.Info("sync plan",
		"create_dirs", len(plan.CreateDirs),
		"delete_files", len(plan.DeleteFiles),
		"delete_dirs", len(plan.DeleteDirs),
		"copy_files", len(plan.CopyFiles))

	if e.dryRun {
		e.logPlanDetails(plan)
		e.logger.Info("dry-run complete, no changes applied")
		return nil
	}

	summary := e.applyPlan(ctx, plan)
	summary.Took = time.Since(start)
	summary.CompletedAt = time.Now()

	e.mu.Lock()
	e.last = &summary
	e.mu.Unlock()

	e.logger.Info("synchronization cycle completed",
		"created_dirs", summary.CreatedDirs,
		"deleted_files", summary.DeletedFiles,
		"deleted_dirs", summary.DeletedDirs,
		"copied_files", summary.CopiedFiles,
		"took", summary.Took)

	return ctx.Err()
}

// LastSummary returns the summary of the most recently completed cycle.
// ok is false until the first non-dry-run cycle finishes.
func (e *Engine) LastSummary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Summary{}, false
	}
	return *e.last, true
}

// logPlanDetails logs detailed plan information for dry-run
func (e *Engine) logPlanDetails(plan *Plan) {
	for _, rel := range plan.CreateDirs {
		e.logger.Info("[dry-run] would create directory", "path", rel)
	}
	for _, rel := range plan.DeleteFiles {
		e.logger.Info("[dry-run] would delete file", "path", rel)
	}
	for _, rel := range plan.DeleteDirs {
		e.logger.Info("[dry-run] would delete directory", "path", rel)
	}
	for _, rel := range plan.CopyFiles {
		e.logger.Info("[dry-run] would copy file", "path", rel)
	}
}
