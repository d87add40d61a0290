package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goeckslab/Galaxy-Tiling/internal/archive"
	"github.com/goeckslab/Galaxy-Tiling/internal/config"
	"github.com/goeckslab/Galaxy-Tiling/internal/pipeline"
	"github.com/goeckslab/Galaxy-Tiling/internal/slide"
	"github.com/goeckslab/Galaxy-Tiling/internal/tiler"
	"github.com/goeckslab/Galaxy-Tiling/pkg/logger"
)

// Orchestrator runs one pipeline instance per slide and aggregates every
// produced tile into the shared archive. Per-slide failures are isolated:
// a failed task never aborts the batch and contributes zero archive
// entries.
type Orchestrator struct {
	cfg       *config.Config
	validator slide.Validator
	engine    tiler.Engine
}

// New creates an orchestrator with injected collaborators, so the batch
// can be exercised against a fake engine in tests.
func New(cfg *config.Config, validator slide.Validator, engine tiler.Engine) *Orchestrator {
	return &Orchestrator{cfg: cfg, validator: validator, engine: engine}
}

// Run processes the positionally paired (inputs, names) lists into the
// archive at archivePath.
//
// Only two conditions abort the whole run: a length mismatch between the
// two lists (checked before the archive is created) and a failure to
// create the archive itself. Everything else degrades to a per-task
// terminal status. The shared scratch root is removed exactly once at
// batch end, regardless of how many tasks failed.
func (o *Orchestrator) Run(ctx context.Context, inputs, names []string, archivePath string) (*Summary, error) {
	if len(inputs) != len(names) {
		return nil, pipeline.NewConfigurationError(
			fmt.Sprintf("input count (%d) does not match name count (%d)", len(inputs), len(names)))
	}

	start := time.Now()
	runID := uuid.NewString()

	absArchive, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, pipeline.NewArchiveError(fmt.Sprintf("cannot resolve archive path %s", archivePath), err)
	}
	scratchRoot := filepath.Join(filepath.Dir(absArchive), o.cfg.Batch.ScratchDir)

	packager, err := archive.NewPackager(absArchive, o.cfg.Tile.Format)
	if err != nil {
		return nil, err
	}

	logger.Info("批处理开始",
		zap.String("run_id", runID),
		zap.Int("tasks", len(inputs)),
		zap.String("archive", absArchive),
		zap.String("scratch_root", scratchRoot))

	tasks := make([]*Task, len(inputs))
	for i := range inputs {
		tasks[i] = NewTask(inputs[i], names[i])
	}

	workers := o.cfg.Batch.Workers
	if workers < 1 {
		workers = 1
	}

	taskCh := make(chan *Task)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for task := range taskCh {
				o.runTask(ctx, worker, task, packager, scratchRoot)
			}
		}(i)
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)
	wg.Wait()

	if err := packager.Close(); err != nil {
		logger.Error("关闭归档失败", zap.Error(err))
	}

	// Global deferred cleanup: the scratch root is shared by all tasks and
	// may only be removed after every task is terminal.
	if err := os.RemoveAll(scratchRoot); err != nil {
		logger.Warn("清理临时目录失败", zap.String("path", scratchRoot), zap.Error(err))
	} else {
		logger.Info("临时目录已清理", zap.String("path", scratchRoot))
	}

	summary := NewSummary(runID, absArchive)
	for _, task := range tasks {
		summary.Record(task)
	}
	summary.Elapsed = time.Since(start)
	if size, err := packager.Size(); err == nil {
		summary.ArchiveBytes = size
	}

	logger.Info("批处理结束",
		zap.String("run_id", runID),
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("tiles", summary.TotalTiles),
		zap.Int64("archive_bytes", summary.ArchiveBytes),
		zap.Duration("elapsed", summary.Elapsed))

	return summary, nil
}

// runTask drives one slide through validate -> configure -> extract ->
// package, converting every error into a terminal status. A panic in any
// stage is confined to this task.
func (o *Orchestrator) runTask(ctx context.Context, worker int, task *Task, packager *archive.Packager, scratchRoot string) {
	start := time.Now()
	defer func() {
		task.Duration = time.Since(start)
		if r := recover(); r != nil {
			logger.Error("任务发生 panic",
				zap.String("source", task.SourcePath),
				zap.String("logical_name", task.LogicalName),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			if !task.Status.Terminal() {
				task.Err = fmt.Errorf("task panicked: %v", r)
				task.Status = StatusFailed
			}
		}
	}()

	log := logger.L().With(
		zap.Int("worker", worker),
		zap.String("source", task.SourcePath),
		zap.String("logical_name", task.LogicalName))

	if !fileutil.IsExist(task.SourcePath) {
		o.skipTask(task, pipeline.NewMissingSourceError(task.SourcePath))
		log.Warn("源文件缺失，跳过任务")
		return
	}

	o.mustAdvance(task, StatusValidating)
	if err := o.validator.Validate(ctx, task.SourcePath); err != nil {
		o.failTask(task, err)
		return
	}

	o.mustAdvance(task, StatusExtracting)
	tileCfg := tiler.NewTileConfig(task.SourcePath, scratchRoot, o.cfg.Tile)
	result, err := o.engine.Extract(ctx, tileCfg)
	if err != nil {
		o.failTask(task, err)
		return
	}

	o.mustAdvance(task, StatusPackaging)
	if result.TileCount == 0 {
		// A slide with no tissue detected is an expected scientific
		// outcome, not an error.
		o.skipTask(task, nil)
		log.Info("未产生任何切片，跳过打包", zap.String("tile_dir", result.TileDir))
		return
	}

	appended, err := packager.Append(task.LogicalName, result.TileDir)
	task.TileCount = appended
	if err != nil {
		o.failTask(task, err)
		return
	}

	o.mustAdvance(task, StatusDone)
	log.Info("任务完成", zap.Int("tiles", appended))
}

// failTask marks a task Failed and logs the full context. Failures stay at
// the task boundary; the batch keeps going.
func (o *Orchestrator) failTask(task *Task, err error) {
	task.Err = err
	o.mustAdvance(task, StatusFailed)
	logger.Error("任务失败",
		zap.String("source", task.SourcePath),
		zap.String("logical_name", task.LogicalName),
		zap.String("status", string(task.Status)),
		zap.Error(err))
}

// skipTask marks a task Skipped, recording the cause when there is one.
func (o *Orchestrator) skipTask(task *Task, err error) {
	task.Err = err
	o.mustAdvance(task, StatusSkipped)
}

// mustAdvance applies a transition the orchestrator believes is legal.
func (o *Orchestrator) mustAdvance(task *Task, to Status) {
	if err := task.advance(to); err != nil {
		panic(err)
	}
}
