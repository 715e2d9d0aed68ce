package exporter

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/raster"
	"github.com/webitel/inspection-exporter/internal/render"
)

var exportDay = time.Date(2024, 6, 1, 15, 4, 0, 0, time.UTC)

type fakeRenderer struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	onRender func(rec *inspection.Record)
	fail     map[int64]bool
}

func (f *fakeRenderer) Render(_ context.Context, rec *inspection.Record) (*render.View, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.onRender != nil {
		f.onRender(rec)
	}
	if f.fail[rec.ID] {
		return nil, errors.New("layout exploded")
	}
	time.Sleep(time.Millisecond)
	return &render.View{
		RecordID:    rec.ID,
		Width:       100,
		Theme:       render.Light,
		Constraints: render.Constraints{MaxHeight: 300, Overflow: render.OverflowHidden},
	}, nil
}

type fakeRaster struct {
	surface *render.Surface
	fail    map[int64]bool
}

func (f *fakeRaster) capture() ([]byte, error) {
	v := f.surface.View()
	if v == nil {
		return nil, errors.New("nothing mounted")
	}
	if v.Constraints.Overflow != render.OverflowVisible {
		return nil, errors.New("constraints not relaxed")
	}
	if f.fail[v.RecordID] {
		return nil, errors.New("canvas tainted")
	}
	return []byte(fmt.Sprintf("png-%d", v.RecordID)), nil
}

func (f *fakeRaster) PNG(context.Context) ([]byte, error) { return f.capture() }
func (f *fakeRaster) PDF(context.Context) ([]byte, error) { return f.capture() }

type memDelivery struct {
	mu    sync.Mutex
	files []File
	err   error
}

func (m *memDelivery) Save(_ context.Context, f File) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, f)
	return nil
}

func newFakeExporter(r *fakeRenderer, failRaster map[int64]bool) (*Exporter, *render.Surface) {
	s := render.NewSurface()
	e := New(s, r, &fakeRaster{surface: s, fail: failRaster},
		WithSettleDelay(0),
		WithInterExportDelay(0),
		WithClock(func() time.Time { return exportDay }),
	)
	return e, s
}

func rec(id, vehicleID int64, name, reg string, day time.Time) *inspection.Record {
	return &inspection.Record{
		ID:          id,
		Vehicle:     inspection.Vehicle{ID: vehicleID, Name: name, Registration: reg},
		InspectedAt: day,
		CreatedAt:   day,
	}
}

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func readZip(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestExportBatchSkipsFailedRecords(t *testing.T) {
	records := []*inspection.Record{
		rec(1, 1, "Van 1", "AB12 CDE", day(1)),
		rec(2, 2, "Van 2", "", day(2)),
		rec(3, 3, "Big  Truck", "XY99", day(3)),
		rec(4, 4, "Car", "", day(4)),
		rec(5, 5, "Bus", "", day(5)),
	}
	e, s := newFakeExporter(&fakeRenderer{fail: map[int64]bool{2: true}}, map[int64]bool{4: true})
	job := NewJob("job-1", records)
	d := &memDelivery{}

	summary, err := e.ExportBatch(context.Background(), job, d)
	require.NoError(t, err)

	assert.Equal(t, export.Progress{Current: 5, Total: 5}, job.Progress())
	assert.Equal(t, StateDone, job.State())
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Exported)
	require.Len(t, summary.Skipped, 2)
	assert.Equal(t, int64(2), summary.Skipped[0].RecordID)
	assert.Equal(t, int64(4), summary.Skipped[1].RecordID)

	require.Len(t, d.files, 1)
	assert.Equal(t, "inspections_export_01-Jun-2024.zip", d.files[0].Name)
	assert.Equal(t, export.MimeZip, d.files[0].MimeType)
	assert.Equal(t, []string{
		"inspections_01-Jun-2024/AB12_CDE_Van_1_01-Mar-2024.png",
		"inspections_01-Jun-2024/XY99_Big_Truck_03-Mar-2024.png",
		"inspections_01-Jun-2024/Bus_05-Mar-2024.png",
	}, readZip(t, d.files[0].Data))

	assert.Nil(t, s.View())
	assert.Nil(t, s.Override())
}

func TestExportBatchNamesAreUnique(t *testing.T) {
	morning := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	records := []*inspection.Record{
		rec(10, 1, "Van", "AB1", morning),
		rec(11, 1, "Van", "AB1", evening),
		rec(12, 1, "Van", "AB1", evening),
	}
	e, _ := newFakeExporter(&fakeRenderer{}, nil)
	d := &memDelivery{}

	summary, err := e.ExportBatch(context.Background(), NewJob("j", records), d)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"AB1_Van_01-Mar-2024.png",
		"AB1_Van_01-Mar-2024_11.png",
		"AB1_Van_01-Mar-2024_12.png",
	}, summary.Files)

	names := readZip(t, d.files[0].Data)
	assert.Len(t, names, 3)
	sort.Strings(names)
	for i := 1; i < len(names); i++ {
		assert.NotEqual(t, names[i-1], names[i])
	}
}

func TestExportBatchEmpty(t *testing.T) {
	e, _ := newFakeExporter(&fakeRenderer{}, nil)
	d := &memDelivery{}

	_, err := e.ExportBatch(context.Background(), NewJob("j", nil), d)
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Empty(t, d.files)
}

func TestExportBatchAllSkippedDeliversNothing(t *testing.T) {
	e, _ := newFakeExporter(&fakeRenderer{fail: map[int64]bool{1: true}}, nil)
	d := &memDelivery{}

	job := NewJob("j", []*inspection.Record{rec(1, 1, "Van", "", day(1))})
	_, err := e.ExportBatch(context.Background(), job, d)
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Equal(t, export.Progress{Current: 1, Total: 1}, job.Progress())
	assert.Empty(t, d.files)
}

func TestExportBatchDeliveryFailureIsFatal(t *testing.T) {
	e, _ := newFakeExporter(&fakeRenderer{}, nil)
	d := &memDelivery{err: errors.New("disk full")}
	job := NewJob("j", []*inspection.Record{rec(1, 1, "Van", "", day(1)), rec(2, 2, "Car", "", day(2))})

	_, err := e.ExportBatch(context.Background(), job, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StateFailed, job.State())
	assert.Empty(t, d.files)
}

func TestExportBatchProgressIsMonotonic(t *testing.T) {
	records := make([]*inspection.Record, 0, 6)
	for i := 1; i <= 6; i++ {
		records = append(records, rec(int64(i), int64(i), "Van", "", day(i)))
	}
	e, _ := newFakeExporter(&fakeRenderer{fail: map[int64]bool{3: true}}, nil)
	job := NewJob("j", records)

	var seen []export.Progress
	job.OnProgress(func(p export.Progress) { seen = append(seen, p) })

	_, err := e.ExportBatch(context.Background(), job, &memDelivery{})
	require.NoError(t, err)
	require.Len(t, seen, 6)
	for i, p := range seen {
		assert.Equal(t, i+1, p.Current)
		assert.Equal(t, 6, p.Total)
	}
}

func TestExportBatchRendersOneAtATimeInOrder(t *testing.T) {
	var order []int64
	r := &fakeRenderer{}
	r.onRender = func(rec *inspection.Record) { order = append(order, rec.ID) }
	records := []*inspection.Record{
		rec(3, 1, "A", "", day(9)), rec(1, 2, "B", "", day(1)), rec(2, 3, "C", "", day(5)),
	}
	e, _ := newFakeExporter(r, nil)

	_, err := e.ExportBatch(context.Background(), NewJob("j", records), &memDelivery{})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, order)
	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestExportOneIsSingleFlight(t *testing.T) {
	r := &fakeRenderer{}
	e, _ := newFakeExporter(r, nil)
	d := &memDelivery{}

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, e.ExportOne(context.Background(), rec(id, id, "Van", "", day(1)), FormatImage, d))
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, int32(1), r.maxSeen.Load())
	assert.Len(t, d.files, 8)
}

func TestCancelBetweenItems(t *testing.T) {
	records := []*inspection.Record{
		rec(1, 1, "A", "", day(1)), rec(2, 2, "B", "", day(2)), rec(3, 3, "C", "", day(3)),
	}
	e, s := newFakeExporter(&fakeRenderer{}, nil)
	job := NewJob("j", records)
	job.OnProgress(func(p export.Progress) {
		if p.Current == 1 {
			assert.NoError(t, job.Cancel())
		}
	})
	d := &memDelivery{}

	_, err := e.ExportBatch(context.Background(), job, d)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateCancelled, job.State())
	assert.Equal(t, 1, job.Progress().Current)
	assert.Empty(t, d.files)
	assert.Nil(t, s.View())
}

func TestCancelRefusedWhileLastRecordRenders(t *testing.T) {
	records := []*inspection.Record{rec(1, 1, "A", "", day(1)), rec(2, 2, "B", "", day(2))}
	r := &fakeRenderer{}
	e, _ := newFakeExporter(r, nil)
	job := NewJob("j", records)

	var results []error
	r.onRender = func(*inspection.Record) {
		if job.State() == StateRendering && job.pending() == 0 {
			results = append(results, job.Cancel())
		}
	}

	summary, err := e.ExportBatch(context.Background(), job, &memDelivery{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Exported)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0], ErrCancelNotAllowed)
	assert.Equal(t, StateDone, job.State())
}

func TestCancelIdleJob(t *testing.T) {
	job := NewJob("j", []*inspection.Record{rec(1, 1, "A", "", day(1))})
	require.NoError(t, job.Cancel())
	assert.Equal(t, StateCancelled, job.State())

	e, _ := newFakeExporter(&fakeRenderer{}, nil)
	_, err := e.ExportBatch(context.Background(), job, &memDelivery{})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestContextCancelObservedBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeRenderer{}
	r.onRender = func(rec *inspection.Record) {
		if rec.ID == 1 {
			cancel()
		}
	}
	e, _ := newFakeExporter(r, nil)
	job := NewJob("j", []*inspection.Record{rec(1, 1, "A", "", day(1)), rec(2, 2, "B", "", day(2))})

	_, err := e.ExportBatch(ctx, job, &memDelivery{})
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, job.Progress().Current)
	assert.Empty(t, job.Skipped())
}

func TestLatestPerVehicle(t *testing.T) {
	vehicles := []inspection.Vehicle{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}
	a1 := rec(1, 1, "A", "", day(1))
	a2 := rec(2, 1, "A", "", day(2))
	b3 := rec(3, 2, "B", "", day(3))

	got := LatestPerVehicle(vehicles, []*inspection.Record{a2, b3, a1})
	assert.Equal(t, []*inspection.Record{a2, b3}, got)
}

func TestLatestPerVehicleTieBreaksOnCreation(t *testing.T) {
	first := rec(1, 1, "A", "", day(4))
	second := rec(2, 1, "A", "", day(4))
	second.CreatedAt = first.CreatedAt.Add(time.Hour)

	got := LatestPerVehicle([]inspection.Vehicle{{ID: 1}}, []*inspection.Record{second, first})
	assert.Equal(t, []*inspection.Record{second}, got)
}

func TestExportLatest(t *testing.T) {
	vehicles := []inspection.Vehicle{
		{ID: 1, Name: "Van A", Registration: "AA1"},
		{ID: 2, Name: "Van B"},
		{ID: 3, Name: "Van C"},
	}
	records := []*inspection.Record{
		rec(1, 1, "Van A", "AA1", day(1)),
		rec(2, 1, "Van A", "AA1", day(2)),
		rec(3, 2, "Van B", "", day(3)),
	}
	e, _ := newFakeExporter(&fakeRenderer{}, nil)
	d := &memDelivery{}

	job := NewJob("latest", LatestPerVehicle(vehicles, records))
	summary, err := e.ExportLatest(context.Background(), job, d)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Exported)

	require.Len(t, d.files, 2)
	assert.Equal(t, "AA1_Van_A_export_02-Mar-2024.png", d.files[0].Name)
	assert.Equal(t, []byte("png-2"), d.files[0].Data)
	assert.Equal(t, "Van_B_export_03-Mar-2024.png", d.files[1].Name)
	assert.Equal(t, []byte("png-3"), d.files[1].Data)
}

func TestExportLatestSameNameVehiclesKeepBothFiles(t *testing.T) {
	vehicles := []inspection.Vehicle{{ID: 1, Name: "Van"}, {ID: 2, Name: "Van"}}
	records := []*inspection.Record{
		rec(10, 1, "Van", "", day(1)),
		rec(11, 2, "Van", "", day(1)),
	}
	e, _ := newFakeExporter(&fakeRenderer{}, nil)
	d := &memDelivery{}

	summary, err := e.ExportLatest(context.Background(), NewJob("latest", LatestPerVehicle(vehicles, records)), d)
	require.NoError(t, err)

	require.Len(t, d.files, 2)
	delivered := []string{d.files[0].Name, d.files[1].Name}
	assert.Equal(t, []string{"Van_export_01-Mar-2024.png", "Van_export_01-Mar-2024_11.png"}, delivered)
	assert.Equal(t, delivered, summary.Files)
}

func TestExportLatestNothing(t *testing.T) {
	e, _ := newFakeExporter(&fakeRenderer{}, nil)
	job := NewJob("latest", LatestPerVehicle([]inspection.Vehicle{{ID: 1}}, nil))
	_, err := e.ExportLatest(context.Background(), job, &memDelivery{})
	assert.ErrorIs(t, err, ErrNothingToExport)
}

type capturingRenderer struct {
	inner render.Renderer
	views []*render.View
}

func (c *capturingRenderer) Render(ctx context.Context, rec *inspection.Record) (*render.View, error) {
	v, err := c.inner.Render(ctx, rec)
	if err == nil {
		c.views = append(c.views, v)
	}
	return v, err
}

func fullRecord() *inspection.Record {
	checks := map[inspection.CheckName]inspection.CheckResult{}
	for _, n := range inspection.AllChecks() {
		checks[n] = inspection.Satisfactory
	}
	r := rec(42, 7, "Van 3", "AB12 CDE", day(5))
	r.Checks = checks
	return r
}

func TestExportOneRestoresStateOnRasterFailure(t *testing.T) {
	s := render.NewSurface()
	cr := &capturingRenderer{inner: render.NewReportRenderer(nil, render.WithWidth(200), render.WithViewportHeight(150))}
	e := New(s, cr, raster.New(s, raster.WithMaxPixels(1)), WithSettleDelay(0))

	err := e.ExportOne(context.Background(), fullRecord(), FormatImage, &memDelivery{})
	require.Error(t, err)

	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, int64(42), re.RecordID)
	assert.Contains(t, err.Error(), "exceeds")

	require.Len(t, cr.views, 1)
	assert.Equal(t, render.Constraints{MaxHeight: 150, Overflow: render.OverflowHidden}, cr.views[0].Constraints)
	assert.Nil(t, s.Override())
	assert.Nil(t, s.View())
}

func TestExportOneWithRasterizer(t *testing.T) {
	s := render.NewSurface()
	cr := &capturingRenderer{inner: render.NewReportRenderer(nil, render.WithWidth(200), render.WithViewportHeight(150))}
	e := New(s, cr, raster.New(s), WithSettleDelay(time.Millisecond))
	d := &memDelivery{}

	require.NoError(t, e.ExportOne(context.Background(), fullRecord(), FormatImage, d))
	require.NoError(t, e.ExportOne(context.Background(), fullRecord(), FormatImage, d))
	require.NoError(t, e.ExportOne(context.Background(), fullRecord(), FormatPDF, d))

	require.Len(t, d.files, 3)
	assert.Equal(t, "AB12_CDE_Van_3_inspection_05-Mar-2024.png", d.files[0].Name)
	assert.Equal(t, "AB12_CDE_Van_3_inspection_05-Mar-2024.pdf", d.files[2].Name)
	assert.Equal(t, export.MimePDF, d.files[2].MimeType)
	assert.True(t, bytes.HasPrefix(d.files[2].Data, []byte("%PDF")))

	first, err := png.Decode(bytes.NewReader(d.files[0].Data))
	require.NoError(t, err)
	second, err := png.Decode(bytes.NewReader(d.files[1].Data))
	require.NoError(t, err)
	require.Equal(t, first.Bounds(), second.Bounds())
	assert.Equal(t, 400, first.Bounds().Dx())
	assert.Greater(t, first.Bounds().Dy(), 300)
	for y := 0; y < first.Bounds().Dy(); y += 37 {
		for x := 0; x < first.Bounds().Dx(); x += 23 {
			assert.Equal(t, first.At(x, y), second.At(x, y))
		}
	}

	for _, v := range cr.views {
		assert.Equal(t, render.OverflowHidden, v.Constraints.Overflow)
	}
	assert.Nil(t, s.Override())
}
