package app

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/webitel/inspection-exporter/auth/permission"
	"github.com/webitel/inspection-exporter/internal/cache"
	"github.com/webitel/inspection-exporter/internal/domain/model"
	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/options/util"
)

const (
	defaultWorkers = 4
	popTimeout     = 5 * time.Second
	retryDelay     = time.Second
)

// TaskProcessor runs one queued export, or records why it could not run.
type TaskProcessor interface {
	Process(ctx context.Context, task export.Task) error
	Fail(ctx context.Context, task export.Task, cause error)
}

// StartExportWorker launches background workers to process export tasks concurrently.
// If too many workers are configured, the number is automatically limited based on available CPU cores.
// Workers still share one render surface, so inspections are rendered one at a time.
func (app *App) StartExportWorker(ctx context.Context) {
	numWorkers := workerCount(app.Config.Export.Workers)
	slog.InfoContext(ctx, "inspection_exporter.worker.starting", slog.Int("count", numWorkers))

	for i := 0; i < numWorkers; i++ {
		app.workers.Add(1)
		go func(workerID int) {
			defer app.workers.Done()
			runWorker(ctx, workerID, app.Cache, app.Exports)
		}(i + 1)
	}
}

func workerCount(configured int) int {
	n := configured
	if n <= 0 {
		n = defaultWorkers
	}
	if maxWorkers := runtime.NumCPU() * 2; n > maxWorkers {
		n = maxWorkers
	}
	return n
}

func runWorker(ctx context.Context, workerID int, queue cache.Cache, processor TaskProcessor) {
	log := slog.Default().With(slog.Int("worker_id", workerID))
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := queue.PopExportTask(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, cache.ErrQueueEmpty) || ctx.Err() != nil {
				continue
			}
			log.WarnContext(ctx, "inspection_exporter.worker.pop_failed", slog.String("error", err.Error()))
			sleep(ctx, retryDelay)
			continue
		}

		role, _ := permission.ParseRole(task.Role)
		session, err := model.NewSession(task.UserID, task.UserName, role)
		if err != nil {
			log.WarnContext(ctx, "inspection_exporter.worker.bad_task",
				slog.String("job_id", task.JobID),
				slog.String("error", err.Error()),
			)
			processor.Fail(ctx, task, err)
			_ = queue.ClearExportTask(ctx, task.JobID)
			continue
		}

		started := time.Now()
		taskCtx := util.ContextWithAuther(ctx, session)
		if err := processor.Process(taskCtx, task); err != nil {
			log.ErrorContext(ctx, "inspection_exporter.worker.task_failed",
				slog.String("job_id", task.JobID),
				slog.String("kind", string(task.Kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		log.InfoContext(ctx, "inspection_exporter.worker.task_done",
			slog.String("job_id", task.JobID),
			slog.Duration("took", time.Since(started)),
		)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
