package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webitel/inspection-exporter/auth"
	"github.com/webitel/inspection-exporter/auth/permission"
	"github.com/webitel/inspection-exporter/internal/cache"
	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	"github.com/webitel/inspection-exporter/internal/domain/model/options/util"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/exporter"
	"github.com/webitel/inspection-exporter/internal/storage"
	"github.com/webitel/inspection-exporter/internal/store"
)

const exportPrefix = "exports/"

// jobManagerRole may see, download and cancel exports started by others.
const jobManagerRole = permission.RoleAdmin

type ExportService struct {
	inspections store.InspectionStore
	history     store.ExportStore
	cache       cache.Cache
	blobs       storage.Blobstore
	exporter    *exporter.Exporter
	log         *slog.Logger

	mu      sync.Mutex
	running map[string]*exporter.Job
}

func NewExportService(
	inspections store.InspectionStore,
	history store.ExportStore,
	c cache.Cache,
	blobs storage.Blobstore,
	exp *exporter.Exporter,
	log *slog.Logger,
) (*ExportService, error) {
	if inspections == nil || history == nil || c == nil || blobs == nil || exp == nil {
		return nil, errors.Internal("missing dependency in ExportService")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExportService{
		inspections: inspections,
		history:     history,
		cache:       c,
		blobs:       blobs,
		exporter:    exp,
		log:         log,
		running:     make(map[string]*exporter.Job),
	}, nil
}

// ExportOne renders a single inspection and returns the file for download.
func (s *ExportService) ExportOne(ctx context.Context, id int64, format exporter.Format) (*exporter.File, error) {
	rec, err := s.inspections.GetInspection(ctx, id)
	if err != nil {
		return nil, err
	}
	var out exporter.File
	err = s.exporter.ExportOne(ctx, rec, format, exporter.DeliveryFunc(func(_ context.Context, f exporter.File) error {
		out = f
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StartBatch queues a zip export of every inspection matching filter.
func (s *ExportService) StartBatch(opts *options.CreateOptions, filter inspection.Filter) (*export.JobMetadata, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, errors.BadRequest("'to' must not be before 'from'")
	}
	records, err := s.inspections.ListInspections(opts, filter)
	if err != nil {
		return nil, err
	}
	task := export.Task{
		Kind:       export.KindBatch,
		VehicleIDs: filter.VehicleIDs,
		From:       unixMilli(filter.From),
		To:         unixMilli(filter.To),
	}
	return s.enqueue(opts, task, len(records))
}

// StartLatest queues an export of each vehicle's newest inspection.
func (s *ExportService) StartLatest(opts *options.CreateOptions) (*export.JobMetadata, error) {
	records, err := s.latest(opts)
	if err != nil {
		return nil, err
	}
	return s.enqueue(opts, export.Task{Kind: export.KindLatest}, len(records))
}

func (s *ExportService) enqueue(opts *options.CreateOptions, task export.Task, total int) (*export.JobMetadata, error) {
	if total == 0 {
		return nil, exporter.ErrNothingToExport
	}
	task.JobID = uuid.NewString()
	task.UserID = opts.Auth.GetUserId()
	task.UserName = opts.Auth.GetName()
	task.Role = string(opts.Auth.GetRole())

	historyID, err := s.history.InsertExportHistory(opts, &export.NewHistory{
		JobID:     task.JobID,
		Kind:      task.Kind,
		Status:    export.StatusPending,
		Total:     total,
		CreatedAt: opts.Time.UnixMilli(),
		CreatedBy: task.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("insert history failed: %w", err)
	}
	task.HistoryID = historyID

	meta := export.JobMetadata{
		JobID:     task.JobID,
		Kind:      task.Kind,
		Status:    export.StatusPending,
		Progress:  export.Progress{Total: total},
		CreatedBy: task.UserID,
	}
	if err := s.cache.SetJob(opts, meta); err != nil {
		return nil, fmt.Errorf("cache set job failed: %w", err)
	}
	if err := s.cache.PushExportTask(opts, task); err != nil {
		return nil, fmt.Errorf("push task failed: %w", err)
	}
	s.log.InfoContext(opts, "export.job.queued",
		slog.String("job_id", task.JobID),
		slog.String("kind", string(task.Kind)),
		slog.Int("total", total),
		slog.Int64("user_id", task.UserID),
	)
	return &meta, nil
}

// Status returns the live state of a job, or its history once the live
// state has expired. Only the job's creator and job managers see it.
func (s *ExportService) Status(ctx context.Context, jobID string) (*export.JobMetadata, error) {
	meta, err := s.status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !canAccess(util.GetAutherOutOfContext(ctx), meta.CreatedBy) {
		return nil, errors.NotFound(fmt.Sprintf("export %s not found", jobID), errors.WithID("export.not_found"))
	}
	return meta, nil
}

func canAccess(caller auth.Auther, createdBy int64) bool {
	if caller == nil {
		return false
	}
	return caller.GetUserId() == createdBy || permission.AtLeast(caller.GetRole(), jobManagerRole)
}

func (s *ExportService) status(ctx context.Context, jobID string) (*export.JobMetadata, error) {
	meta, err := s.cache.GetJob(ctx, jobID)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, cache.ErrJobNotFound) {
		return nil, fmt.Errorf("cache get job failed: %w", err)
	}
	rec, err := s.history.GetExportByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &export.JobMetadata{
		JobID:     rec.JobID,
		Kind:      rec.Kind,
		Status:    rec.Status,
		Progress:  export.Progress{Current: rec.Completed + rec.Skipped, Total: rec.Total},
		Skipped:   rec.Skipped,
		Files:     rec.Files,
		Error:     rec.Error,
		CreatedBy: rec.CreatedBy,
	}, nil
}

// Cancel stops a job before its next inspection. A job whose last
// inspection is rendering, or whose output is being finalized, can no
// longer be cancelled. For a job running on another instance only the
// finalizing stage is known; a request during its last render still stops it.
func (s *ExportService) Cancel(ctx context.Context, jobID string) error {
	meta, err := s.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if meta.Status.Terminal() {
		return nil
	}
	if meta.Finalizing {
		return exporter.ErrCancelNotAllowed
	}
	if job := s.job(jobID); job != nil {
		if err := job.Cancel(); err != nil {
			return err
		}
	}
	if err := s.cache.RequestCancel(ctx, jobID); err != nil {
		return fmt.Errorf("cache request cancel failed: %w", err)
	}
	s.log.InfoContext(ctx, "export.job.cancel_requested", slog.String("job_id", jobID))
	return nil
}

// Open reads one produced file of a finished job.
func (s *ExportService) Open(ctx context.Context, jobID, name string) (*exporter.File, error) {
	meta, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, f := range meta.Files {
		if f.Name != name {
			continue
		}
		data, err := s.blobs.Get(ctx, f.Key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound("export file is gone", errors.WithCause(err))
		}
		if err != nil {
			return nil, err
		}
		return &exporter.File{Name: f.Name, MimeType: f.MimeType, Data: data}, nil
	}
	return nil, errors.NotFound(fmt.Sprintf("export %s has no file %q", jobID, name))
}

func (s *ExportService) History(opts *options.SearchOptions) (*export.HistoryResponse, error) {
	return s.history.GetExportHistory(opts, &export.HistoryRequest{
		CreatedBy: opts.Auth.GetUserId(),
		Page:      opts.Page,
		Size:      opts.Size,
	})
}

// Process runs a queued task to the end. It is the body of an export worker.
func (s *ExportService) Process(ctx context.Context, task export.Task) error {
	log := s.log.With(
		slog.String("job_id", task.JobID),
		slog.String("kind", string(task.Kind)),
	)
	defer func() { _ = s.cache.ClearExportTask(context.WithoutCancel(ctx), task.JobID) }()

	records, err := s.collect(ctx, task)
	if err != nil {
		s.complete(ctx, task, export.StatusFailed, nil, nil, err)
		return err
	}

	job := exporter.NewJob(task.JobID, records)
	s.track(job)
	defer s.untrack(job.ID())

	if requested, _ := s.cache.CancelRequested(ctx, task.JobID); requested {
		_ = job.Cancel()
	}
	s.setState(ctx, task, export.StatusProcessing, export.Progress{Total: len(records)}, nil)

	job.OnProgress(func(p export.Progress) {
		ctx := context.WithoutCancel(ctx)
		_ = s.cache.SetProgress(ctx, task.JobID, p)
		if s.cancelRequested(ctx, job) || p.Current < p.Total {
			return
		}
		_ = s.cache.SetJob(ctx, export.JobMetadata{
			JobID:      task.JobID,
			Kind:       task.Kind,
			Status:     export.StatusProcessing,
			Progress:   p,
			CreatedBy:  task.UserID,
			Finalizing: true,
		})
		// a request that slipped in before the flag was published still counts
		s.cancelRequested(ctx, job)
	})

	var files []export.File
	delivery := exporter.DeliveryFunc(func(ctx context.Context, f exporter.File) error {
		key := path.Join(exportPrefix, task.JobID, f.Name)
		if err := s.blobs.Put(ctx, key, f.Data, f.MimeType); err != nil {
			return err
		}
		files = append(files, export.File{Name: f.Name, Key: key, MimeType: f.MimeType, Size: int64(len(f.Data))})
		return nil
	})

	var summary *exporter.Summary
	switch task.Kind {
	case export.KindBatch:
		summary, err = s.exporter.ExportBatch(ctx, job, delivery)
	case export.KindLatest:
		summary, err = s.exporter.ExportLatest(ctx, job, delivery)
	default:
		err = fmt.Errorf("unknown export kind %q", task.Kind)
	}

	status := export.StatusDone
	switch {
	case exporter.IsCancelled(err):
		status = export.StatusCancelled
	case err != nil:
		status = export.StatusFailed
	}
	s.complete(ctx, task, status, summary, files, err)
	log.InfoContext(ctx, "export.job.finished", slog.String("status", string(status)))
	if status == export.StatusCancelled {
		return nil
	}
	return err
}

// Fail marks a queued task that cannot be run as failed.
func (s *ExportService) Fail(ctx context.Context, task export.Task, cause error) {
	s.complete(ctx, task, export.StatusFailed, nil, nil, cause)
	s.log.WarnContext(ctx, "export.job.rejected",
		slog.String("job_id", task.JobID),
		slog.String("error", cause.Error()),
	)
}

func (s *ExportService) cancelRequested(ctx context.Context, job *exporter.Job) bool {
	requested, err := s.cache.CancelRequested(ctx, job.ID())
	if err != nil || !requested {
		return false
	}
	_ = job.Cancel()
	return true
}

func (s *ExportService) collect(ctx context.Context, task export.Task) ([]*inspection.Record, error) {
	switch task.Kind {
	case export.KindLatest:
		return s.latest(ctx)
	default:
		return s.inspections.ListInspections(ctx, inspection.Filter{
			VehicleIDs: task.VehicleIDs,
			From:       fromMilli(task.From),
			To:         fromMilli(task.To),
		})
	}
}

func (s *ExportService) latest(ctx context.Context) ([]*inspection.Record, error) {
	vehicles, err := s.inspections.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.inspections.ListInspections(ctx, inspection.Filter{})
	if err != nil {
		return nil, err
	}
	return exporter.LatestPerVehicle(vehicles, records), nil
}

func (s *ExportService) setState(ctx context.Context, task export.Task, status export.Status, p export.Progress, files []export.File) {
	ctx = context.WithoutCancel(ctx)
	_ = s.cache.SetJob(ctx, export.JobMetadata{
		JobID:     task.JobID,
		Kind:      task.Kind,
		Status:    status,
		Progress:  p,
		Files:     files,
		CreatedBy: task.UserID,
	})
	if err := s.history.UpdateExportHistory(ctx, &export.UpdateHistory{
		ID:        task.HistoryID,
		Status:    status,
		UpdatedBy: task.UserID,
	}); err != nil {
		s.log.ErrorContext(ctx, "export.history.update_failed",
			slog.String("job_id", task.JobID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ExportService) complete(ctx context.Context, task export.Task, status export.Status, summary *exporter.Summary, files []export.File, cause error) {
	ctx = context.WithoutCancel(ctx)
	meta := export.JobMetadata{
		JobID:     task.JobID,
		Kind:      task.Kind,
		Status:    status,
		Files:     files,
		CreatedBy: task.UserID,
	}
	update := &export.UpdateHistory{
		ID:        task.HistoryID,
		Status:    status,
		Files:     files,
		UpdatedBy: task.UserID,
	}
	if summary != nil {
		meta.Progress = export.Progress{Current: summary.Exported + len(summary.Skipped), Total: summary.Total}
		meta.Skipped = len(summary.Skipped)
		update.Completed = summary.Exported
		update.Skipped = len(summary.Skipped)
	}
	if cause != nil && status == export.StatusFailed {
		meta.Error = errors.Details(cause)
		update.Error = meta.Error
	}
	if err := s.cache.SetJob(ctx, meta); err != nil {
		s.log.ErrorContext(ctx, "export.cache.set_failed", slog.String("job_id", task.JobID), slog.String("error", err.Error()))
	}
	if err := s.history.UpdateExportHistory(ctx, update); err != nil {
		s.log.ErrorContext(ctx, "export.history.update_failed", slog.String("job_id", task.JobID), slog.String("error", err.Error()))
	}
}

func (s *ExportService) track(job *exporter.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[job.ID()] = job
}

func (s *ExportService) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, id)
}

func (s *ExportService) job(id string) *exporter.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[id]
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
