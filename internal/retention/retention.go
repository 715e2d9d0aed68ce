// Package retention limits stored photos to the newest inspections of each
// vehicle.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/storage"
)

const (
	DefaultKeep       = 3
	maxParallelDelete = 8
)

type Store interface {
	ListInspections(ctx context.Context, filter inspection.Filter) ([]*inspection.Record, error)
	ClearPhotos(ctx context.Context, ids []int64) error
}

type Policy struct {
	keep  int
	store Store
	blobs storage.Blobstore
	log   *slog.Logger
}

func New(store Store, blobs storage.Blobstore, keep int, log *slog.Logger) *Policy {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if log == nil {
		log = slog.Default()
	}
	return &Policy{keep: keep, store: store, blobs: blobs, log: log}
}

// Report lists what a run cleaned up.
type Report struct {
	Cleared       []int64
	DeletedPhotos int
	FailedPhotos  int
}

// Apply clears the photos of every inspection of vehicleID older than the
// newest keep ones. Failed object deletions are logged and counted only.
func (p *Policy) Apply(ctx context.Context, vehicleID int64) (*Report, error) {
	records, err := p.store.ListInspections(ctx, inspection.Filter{VehicleIDs: []int64{vehicleID}})
	if err != nil {
		return nil, fmt.Errorf("retention: list inspections: %w", err)
	}
	inspection.SortNewestFirst(records)

	report := &Report{}
	if len(records) <= p.keep {
		return report, nil
	}

	var keys []string
	for _, rec := range records[p.keep:] {
		if len(rec.Photos) == 0 {
			continue
		}
		report.Cleared = append(report.Cleared, rec.ID)
		for _, ph := range rec.Photos {
			if ph.Path != "" {
				keys = append(keys, ph.Path)
			}
		}
	}
	if len(report.Cleared) == 0 {
		return report, nil
	}

	report.DeletedPhotos, report.FailedPhotos = p.deleteObjects(ctx, keys)

	if err := p.store.ClearPhotos(ctx, report.Cleared); err != nil {
		return report, fmt.Errorf("retention: clear photos: %w", err)
	}
	p.log.InfoContext(ctx, "retention.policy.applied",
		slog.Int64("vehicle_id", vehicleID),
		slog.Int("cleared", len(report.Cleared)),
		slog.Int("deleted_photos", report.DeletedPhotos),
		slog.Int("failed_photos", report.FailedPhotos),
	)
	return report, nil
}

func (p *Policy) deleteObjects(ctx context.Context, keys []string) (deleted, failed int) {
	if p.blobs == nil || len(keys) == 0 {
		return 0, 0
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDelete)
	for _, key := range keys {
		g.Go(func() error {
			err := p.blobs.Delete(gctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				p.log.WarnContext(ctx, "retention.photo.delete_failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				return nil
			}
			deleted++
			return nil
		})
	}
	_ = g.Wait()
	return deleted, failed
}
