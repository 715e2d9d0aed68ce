// Package exporter drives inspection records through the renderer and the
// rasterizer and delivers the results as single files or a zip archive.
package exporter

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/render"
)

const (
	DefaultSettleDelay      = 200 * time.Millisecond
	DefaultInterExportDelay = 500 * time.Millisecond
)

type Format string

const (
	FormatImage Format = "image"
	FormatPDF   Format = "pdf"
)

func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case "", FormatImage, "png":
		return FormatImage, true
	case FormatPDF:
		return FormatPDF, true
	default:
		return "", false
	}
}

func (f Format) MimeType() string {
	if f == FormatPDF {
		return export.MimePDF
	}
	return export.MimePNG
}

// Rasterizer captures whatever view is mounted on the surface.
type Rasterizer interface {
	PNG(ctx context.Context) ([]byte, error)
	PDF(ctx context.Context) ([]byte, error)
}

type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Delivery is where finished files go.
type Delivery interface {
	Save(ctx context.Context, f File) error
}

type DeliveryFunc func(ctx context.Context, f File) error

func (fn DeliveryFunc) Save(ctx context.Context, f File) error { return fn(ctx, f) }

// Observer is told about every rendered unit and finished job.
type Observer interface {
	UnitDone(format Format, took time.Duration, err error)
	JobDone(kind export.Kind, s *Summary, err error)
}

type nopObserver struct{}

func (nopObserver) UnitDone(Format, time.Duration, error) {}
func (nopObserver) JobDone(export.Kind, *Summary, error)  {}

type Exporter struct {
	surface  *render.Surface
	renderer render.Renderer
	raster   Rasterizer

	settle   time.Duration
	interval time.Duration
	now      func() time.Time
	observer Observer
	log      *slog.Logger
}

type Option func(*Exporter)

func WithSettleDelay(d time.Duration) Option      { return func(e *Exporter) { e.settle = d } }
func WithInterExportDelay(d time.Duration) Option { return func(e *Exporter) { e.interval = d } }
func WithClock(now func() time.Time) Option       { return func(e *Exporter) { e.now = now } }
func WithObserver(o Observer) Option              { return func(e *Exporter) { e.observer = o } }
func WithLogger(l *slog.Logger) Option            { return func(e *Exporter) { e.log = l } }

func New(surface *render.Surface, renderer render.Renderer, raster Rasterizer, opts ...Option) *Exporter {
	e := &Exporter{
		surface:  surface,
		renderer: renderer,
		raster:   raster,
		settle:   DefaultSettleDelay,
		interval: DefaultInterExportDelay,
		now:      time.Now,
		observer: nopObserver{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportOne renders rec and hands the file to d.
func (e *Exporter) ExportOne(ctx context.Context, rec *inspection.Record, format Format, d Delivery) error {
	data, err := e.unit(ctx, rec, format)
	if err != nil {
		e.log.ErrorContext(ctx, "exporter.single.render_failed",
			slog.Int64("inspection_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	name := SingleFileName(rec, format)
	if err := d.Save(ctx, File{Name: name, MimeType: format.MimeType(), Data: data}); err != nil {
		return fmt.Errorf("deliver %s: %w", name, err)
	}
	e.log.InfoContext(ctx, "exporter.single.done",
		slog.Int64("inspection_id", rec.ID),
		slog.String("file", name),
	)
	return nil
}

// ExportBatch renders every record of job as a PNG and delivers them as one
// zip archive. A record that fails to render is skipped; a failure to build
// or deliver the archive fails the whole job and nothing is delivered.
func (e *Exporter) ExportBatch(ctx context.Context, job *Job, d Delivery) (*Summary, error) {
	summary, err := e.exportBatch(ctx, job, d)
	e.observer.JobDone(export.KindBatch, summary, err)
	return summary, err
}

func (e *Exporter) exportBatch(ctx context.Context, job *Job, d Delivery) (*Summary, error) {
	total, err := job.start()
	if err != nil {
		return job.summary(), err
	}
	if total == 0 {
		job.finish(ErrNothingToExport)
		return job.summary(), ErrNothingToExport
	}
	exported := e.now()
	log := e.log.With(slog.String("job_id", job.ID()))

	if err := e.drain(ctx, job, 0, func(rec *inspection.Record, data []byte) error {
		job.collected(job.reserve(BatchEntryName(rec)), data)
		return nil
	}); err != nil {
		return job.summary(), err
	}

	outputs := job.finalize()
	if len(outputs) == 0 {
		err := fmt.Errorf("every inspection failed to render: %w", ErrNothingToExport)
		job.finish(err)
		return job.summary(), err
	}
	archive, err := buildArchive(BatchFolder(exported), outputs)
	if err != nil {
		job.finish(err)
		log.ErrorContext(ctx, "exporter.batch.archive_failed", slog.String("error", err.Error()))
		return job.summary(), err
	}
	name := ArchiveName(exported)
	if err := d.Save(context.WithoutCancel(ctx), File{Name: name, MimeType: export.MimeZip, Data: archive}); err != nil {
		err = fmt.Errorf("deliver %s: %w", name, err)
		job.finish(err)
		log.ErrorContext(ctx, "exporter.batch.delivery_failed", slog.String("error", err.Error()))
		return job.summary(), err
	}
	job.finish(nil)

	s := job.summary()
	log.InfoContext(ctx, "exporter.batch.done",
		slog.String("archive", name),
		slog.Int("total", s.Total),
		slog.Int("exported", s.Exported),
		slog.Int("skipped", len(s.Skipped)),
	)
	return s, nil
}

// ExportLatest delivers every record of job as its own PNG, one after
// another with the inter-export delay between them. Build the job from
// LatestPerVehicle.
func (e *Exporter) ExportLatest(ctx context.Context, job *Job, d Delivery) (*Summary, error) {
	summary, err := e.exportLatest(ctx, job, d)
	e.observer.JobDone(export.KindLatest, summary, err)
	return summary, err
}

func (e *Exporter) exportLatest(ctx context.Context, job *Job, d Delivery) (*Summary, error) {
	total, err := job.start()
	if err != nil {
		return job.summary(), err
	}
	if total == 0 {
		job.finish(ErrNothingToExport)
		return job.summary(), ErrNothingToExport
	}
	log := e.log.With(slog.String("job_id", job.ID()))

	if err := e.drain(ctx, job, e.interval, func(rec *inspection.Record, data []byte) error {
		name := job.reserve(LatestFileName(rec))
		if err := d.Save(context.WithoutCancel(ctx), File{Name: name, MimeType: export.MimePNG, Data: data}); err != nil {
			return fmt.Errorf("deliver %s: %w", name, err)
		}
		job.collected(name, nil)
		return nil
	}); err != nil {
		return job.summary(), err
	}
	job.finalize()
	job.finish(nil)

	s := job.summary()
	log.InfoContext(ctx, "exporter.latest.done",
		slog.Int("total", s.Total),
		slog.Int("exported", s.Exported),
		slog.Int("skipped", len(s.Skipped)),
	)
	return s, nil
}

// drain runs the records of job one at a time, waiting pause between them.
// Only between records are ctx and cancel requests looked at; a started
// record always completes.
func (e *Exporter) drain(ctx context.Context, job *Job, pause time.Duration, collect func(*inspection.Record, []byte) error) error {
	unitCtx := context.WithoutCancel(ctx)
	for i := 0; ; i++ {
		if i > 0 && pause > 0 && job.pending() > 0 {
			_ = sleep(ctx, pause)
		}
		rec, ok, err := job.next(ctx)
		if err != nil {
			e.log.InfoContext(ctx, "exporter.job.cancelled",
				slog.String("job_id", job.ID()),
				slog.Int("completed", job.Progress().Current),
			)
			return err
		}
		if !ok {
			return nil
		}
		data, err := e.unit(unitCtx, rec, FormatImage)
		if err != nil {
			e.log.WarnContext(ctx, "exporter.job.item_skipped",
				slog.String("job_id", job.ID()),
				slog.Int64("inspection_id", rec.ID),
				slog.String("error", err.Error()),
			)
			job.skip(err)
			continue
		}
		if err := collect(rec, data); err != nil {
			job.finish(err)
			return err
		}
	}
}

// unit renders one record on the shared surface and captures it. The view
// constraints and the surface are restored on every return path.
func (e *Exporter) unit(ctx context.Context, rec *inspection.Record, format Format) (out []byte, err error) {
	started := time.Now()
	defer func() {
		e.observer.UnitDone(format, time.Since(started), err)
		if err != nil {
			err = &RenderError{RecordID: rec.ID, Err: err}
		}
	}()

	release, err := e.surface.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view, err := e.renderer.Render(ctx, rec)
	if err != nil {
		return nil, err
	}
	restore := view.RelaxConstraints()
	defer restore()

	unmount, err := e.surface.Mount(view)
	if err != nil {
		return nil, err
	}
	defer unmount()

	if err := sleep(ctx, e.settle); err != nil {
		return nil, err
	}
	if format == FormatPDF {
		return e.raster.PDF(ctx)
	}
	return e.raster.PNG(ctx)
}

func buildArchive(folder string, outputs []Output) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, o := range outputs {
		w, err := zw.Create(folder + "/" + o.Name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", o.Name, err)
		}
		if _, err := w.Write(o.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", o.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LatestPerVehicle picks each vehicle's newest inspection, by date then by
// creation time, in vehicle order. Vehicles without inspections are left out.
func LatestPerVehicle(vehicles []inspection.Vehicle, records []*inspection.Record) []*inspection.Record {
	latest := make(map[int64]*inspection.Record)
	for _, rec := range records {
		cur, ok := latest[rec.Vehicle.ID]
		if !ok || inspection.Newer(rec, cur) {
			latest[rec.Vehicle.ID] = rec
		}
	}
	out := make([]*inspection.Record, 0, len(latest))
	for _, v := range vehicles {
		if rec, ok := latest[v.ID]; ok {
			out = append(out, rec)
		}
	}
	return out
}
