package service

import (
	"context"
	"sort"
	"sync"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/render"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	records  []*inspection.Record
	vehicles []inspection.Vehicle
	history  []*export.HistoryRecord
}

func (f *fakeStore) ListInspections(_ context.Context, filter inspection.Filter) ([]*inspection.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*inspection.Record
	for _, r := range f.records {
		if len(filter.VehicleIDs) > 0 && !contains(filter.VehicleIDs, r.Vehicle.ID) {
			continue
		}
		if !filter.From.IsZero() && r.InspectedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && r.InspectedAt.After(filter.To) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	inspection.SortNewestFirst(out)
	return out, nil
}

func (f *fakeStore) SearchInspections(opts *options.SearchOptions, filter inspection.Filter) ([]*inspection.Record, bool, error) {
	all, _ := f.ListInspections(opts, filter)
	start := opts.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + opts.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], end < len(all), nil
}

func (f *fakeStore) GetInspection(_ context.Context, id int64) (*inspection.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.NewDBNotFoundError("get_inspection", "inspection not found")
}

func (f *fakeStore) InsertInspection(opts *options.CreateOptions, rec *inspection.Record) (*inspection.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *rec
	cp.ID = f.nextID
	cp.CreatedAt = opts.Time
	cp.Inspector = inspection.User{ID: opts.Auth.GetUserId(), Name: opts.Auth.GetName()}
	f.records = append(f.records, &cp)
	out := cp
	return &out, nil
}

func (f *fakeStore) DeleteInspection(opts *options.DeleteOptions) ([]*inspection.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted []*inspection.Record
	kept := f.records[:0]
	for _, r := range f.records {
		if contains(opts.IDs, r.ID) {
			deleted = append(deleted, r)
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return deleted, nil
}

func (f *fakeStore) ClearPhotos(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if contains(ids, r.ID) {
			r.Photos = nil
		}
	}
	return nil
}

func (f *fakeStore) ListVehicles(context.Context) ([]inspection.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]inspection.Vehicle(nil), f.vehicles...), nil
}

func (f *fakeStore) InsertExportHistory(opts *options.CreateOptions, in *export.NewHistory) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.history) + 1)
	f.history = append(f.history, &export.HistoryRecord{
		ID:        id,
		JobID:     in.JobID,
		Kind:      in.Kind,
		Status:    in.Status,
		Total:     in.Total,
		CreatedBy: in.CreatedBy,
		CreatedAt: opts.Time,
	})
	return id, nil
}

func (f *fakeStore) UpdateExportHistory(_ context.Context, in *export.UpdateHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.history {
		if h.ID != in.ID {
			continue
		}
		h.Status = in.Status
		h.Completed = in.Completed
		h.Skipped = in.Skipped
		h.Error = in.Error
		if in.Files != nil {
			h.Files = in.Files
		}
		return nil
	}
	return errors.NewDBNotFoundError("update_export_history", "export not found")
}

func (f *fakeStore) GetExportHistory(opts *options.SearchOptions, req *export.HistoryRequest) (*export.HistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &export.HistoryResponse{Page: req.Page}
	for _, h := range f.history {
		if h.CreatedBy == req.CreatedBy {
			resp.Data = append(resp.Data, h)
		}
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].ID > resp.Data[j].ID })
	return resp, nil
}

func (f *fakeStore) GetExportByJobID(_ context.Context, jobID string) (*export.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.history {
		if h.JobID == jobID {
			cp := *h
			return &cp, nil
		}
	}
	return nil, errors.NewDBNotFoundError("get_export_by_job_id", "export not found")
}

func (f *fakeStore) historyFor(jobID string) *export.HistoryRecord {
	h, _ := f.GetExportByJobID(context.Background(), jobID)
	return h
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type stubRenderer struct {
	fail map[int64]bool
}

func (s *stubRenderer) Render(_ context.Context, rec *inspection.Record) (*render.View, error) {
	if s.fail[rec.ID] {
		return nil, errors.New("layout exploded")
	}
	return &render.View{RecordID: rec.ID, Width: 100, Theme: render.Light}, nil
}

type stubRaster struct{}

func (stubRaster) PNG(context.Context) ([]byte, error) { return []byte("png"), nil }
func (stubRaster) PDF(context.Context) ([]byte, error) { return []byte("%PDF"), nil }
