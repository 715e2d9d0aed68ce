package store

import (
	"context"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
)

type Store interface {
	Inspection() InspectionStore
	Export() ExportStore

	// ------------ Database Management ------------ //
	Open() error  // Return custom DB error
	Close() error // Return custom DB error
}

type InspectionStore interface {
	// ListInspections returns every match, newest first.
	ListInspections(ctx context.Context, filter inspection.Filter) ([]*inspection.Record, error)
	// SearchInspections pages through matches; next reports a further page.
	SearchInspections(opts *options.SearchOptions, filter inspection.Filter) (records []*inspection.Record, next bool, err error)
	GetInspection(ctx context.Context, id int64) (*inspection.Record, error)
	InsertInspection(opts *options.CreateOptions, rec *inspection.Record) (*inspection.Record, error)
	// DeleteInspection removes the records and returns them as they were.
	DeleteInspection(opts *options.DeleteOptions) ([]*inspection.Record, error)
	ClearPhotos(ctx context.Context, ids []int64) error
	ListVehicles(ctx context.Context) ([]inspection.Vehicle, error)
}

type ExportStore interface {
	InsertExportHistory(opts *options.CreateOptions, input *export.NewHistory) (int64, error)
	UpdateExportHistory(ctx context.Context, input *export.UpdateHistory) error
	GetExportHistory(opts *options.SearchOptions, req *export.HistoryRequest) (*export.HistoryResponse, error)
	GetExportByJobID(ctx context.Context, jobID string) (*export.HistoryRecord, error)
}
