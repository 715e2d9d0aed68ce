package cache

import (
	"context"
	"errors"
	"time"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
)

var (
	ErrQueueEmpty  = errors.New("queue empty (timeout)")
	ErrJobNotFound = errors.New("export job not found")
)

// Cache carries queued export tasks and the live state of running jobs
// between the API and the export workers.
type Cache interface {
	PushExportTask(ctx context.Context, task export.Task) error
	// PopExportTask waits up to timeout; ErrQueueEmpty when nothing arrived.
	PopExportTask(ctx context.Context, timeout time.Duration) (export.Task, error)

	SetJob(ctx context.Context, meta export.JobMetadata) error
	GetJob(ctx context.Context, jobID string) (*export.JobMetadata, error)
	SetProgress(ctx context.Context, jobID string, p export.Progress) error

	RequestCancel(ctx context.Context, jobID string) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)

	ClearExportTask(ctx context.Context, jobID string) error
	Clear(ctx context.Context) error
}
