package postgres

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	dberr "github.com/webitel/inspection-exporter/internal/errors"
)

type Export struct {
	storage *Store
}

var historyColumns = []string{
	"id",
	"job_id",
	"kind",
	"status",
	"total",
	"completed",
	"skipped",
	"files",
	"error",
	"created_at",
	"updated_at",
	"created_by",
	"updated_by",
}

func historyQuery(createdBy int64, page, size int) sq.SelectBuilder {
	return psql.
		Select(historyColumns...).
		From(table("export_history")).
		Where(sq.Eq{"created_by": createdBy}).
		OrderBy("created_at DESC", "id DESC").
		Offset(uint64((page - 1) * size)).
		Limit(uint64(size + 1)) // fetch one extra to check has_next
}

func scanHistory(row pgx.Row) (*export.HistoryRecord, error) {
	var (
		rec   export.HistoryRecord
		files []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.JobID,
		&rec.Kind,
		&rec.Status,
		&rec.Total,
		&rec.Completed,
		&rec.Skipped,
		&files,
		&rec.Error,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.CreatedBy,
		&rec.UpdatedBy,
	); err != nil {
		return nil, err
	}
	if len(files) > 0 {
		if err := json.Unmarshal(files, &rec.Files); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (m *Export) GetExportHistory(opts *options.SearchOptions, req *export.HistoryRequest) (*export.HistoryResponse, error) {
	const op = "get_export_history"
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}

	page, size := req.Page, req.Size
	if page < 1 {
		page = opts.Page
	}
	if size <= 0 {
		size = opts.Size
	}

	sqlStr, args, err := historyQuery(req.CreatedBy, page, size).ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	rows, err := db.Query(opts, sqlStr, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var records []*export.HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError(op, err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, mapError(op, err)
	}

	// Check has_next
	hasNext := false
	if len(records) > size {
		hasNext = true
		records = records[:size] // drop the extra record
	}

	return &export.HistoryResponse{
		Page: page,
		Next: hasNext,
		Data: records,
	}, nil
}

func (m *Export) GetExportByJobID(ctx context.Context, jobID string) (*export.HistoryRecord, error) {
	const op = "get_export"
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	sqlStr, args, err := psql.Select(historyColumns...).
		From(table("export_history")).
		Where(sq.Eq{"job_id": jobID}).
		ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	rec, err := scanHistory(db.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError(op, err)
	}
	return rec, nil
}

func (m *Export) InsertExportHistory(opts *options.CreateOptions, input *export.NewHistory) (int64, error) {
	const op = "insert_export_history"
	db, err := m.storage.Database()
	if err != nil {
		return 0, dberr.NewDBInternalError(op, err)
	}

	query := `
		INSERT INTO inspection_exporter.export_history
			(job_id, kind, status, total, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		RETURNING id
	`

	var id int64
	err = db.QueryRow(
		opts,
		query,
		input.JobID,
		input.Kind,
		input.Status,
		input.Total,
		time.UnixMilli(input.CreatedAt),
		input.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, mapError(op, err)
	}
	return id, nil
}

func updateHistoryQuery(input *export.UpdateHistory, now time.Time) (sq.UpdateBuilder, error) {
	q := psql.Update(table("export_history")).
		Set("status", input.Status).
		Set("completed", input.Completed).
		Set("skipped", input.Skipped).
		Set("error", input.Error).
		Set("updated_at", now).
		Set("updated_by", input.UpdatedBy).
		Where(sq.Eq{"id": input.ID})
	if input.Files != nil {
		files, err := json.Marshal(input.Files)
		if err != nil {
			return q, err
		}
		q = q.Set("files", files)
	}
	return q, nil
}

func (m *Export) UpdateExportHistory(ctx context.Context, input *export.UpdateHistory) error {
	const op = "update_export_history"
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError(op, err)
	}
	q, err := updateHistoryQuery(input, time.Now().UTC())
	if err != nil {
		return dberr.NewDBInternalError(op, err)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return dberr.NewDBInternalError(op, err)
	}
	tag, err := db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError(op, "export history not found")
	}
	return nil
}
