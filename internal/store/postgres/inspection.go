package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	dberr "github.com/webitel/inspection-exporter/internal/errors"
)

type Inspection struct {
	storage *Store
}

var inspectionColumns = []string{
	"i.id",
	"v.id",
	"v.name",
	"v.registration",
	"i.inspector_id",
	"i.inspector_name",
	"i.inspected_at",
	"i.created_at",
	"i.odometer",
	"i.checks",
	"i.comments",
	"i.damage_notes",
	"i.photos",
}

func selectInspections(filter inspection.Filter) sq.SelectBuilder {
	q := psql.
		Select(inspectionColumns...).
		From(table("inspection")+" i").
		Join(table("vehicle")+" v ON v.id = i.vehicle_id").
		OrderBy("i.inspected_at DESC", "i.created_at DESC", "i.id DESC")
	if len(filter.VehicleIDs) > 0 {
		q = q.Where(sq.Eq{"i.vehicle_id": filter.VehicleIDs})
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"i.inspected_at": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.LtOrEq{"i.inspected_at": filter.To})
	}
	return q
}

func scanInspection(row pgx.Row) (*inspection.Record, error) {
	var (
		rec           inspection.Record
		checks        []byte
		photos        []byte
		comments, dmg *string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Vehicle.ID,
		&rec.Vehicle.Name,
		&rec.Vehicle.Registration,
		&rec.Inspector.ID,
		&rec.Inspector.Name,
		&rec.InspectedAt,
		&rec.CreatedAt,
		&rec.Odometer,
		&checks,
		&comments,
		&dmg,
		&photos,
	); err != nil {
		return nil, err
	}
	if comments != nil {
		rec.Comments = *comments
	}
	if dmg != nil {
		rec.DamageNotes = *dmg
	}
	if len(checks) > 0 {
		if err := json.Unmarshal(checks, &rec.Checks); err != nil {
			return nil, fmt.Errorf("decode checks of inspection %d: %w", rec.ID, err)
		}
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &rec.Photos); err != nil {
			return nil, fmt.Errorf("decode photos of inspection %d: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func (m *Inspection) query(ctx context.Context, op string, q sq.SelectBuilder) ([]*inspection.Record, error) {
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []*inspection.Record
	for rows.Next() {
		rec, err := scanInspection(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return out, nil
}

func (m *Inspection) ListInspections(ctx context.Context, filter inspection.Filter) ([]*inspection.Record, error) {
	return m.query(ctx, "list_inspections", selectInspections(filter))
}

func (m *Inspection) SearchInspections(opts *options.SearchOptions, filter inspection.Filter) ([]*inspection.Record, bool, error) {
	// fetch one extra to check has_next
	q := selectInspections(filter).
		Offset(uint64(opts.Offset())).
		Limit(uint64(opts.Size + 1))
	records, err := m.query(opts, "search_inspections", q)
	if err != nil {
		return nil, false, err
	}
	next := len(records) > opts.Size
	if next {
		records = records[:opts.Size]
	}
	return records, next, nil
}

func (m *Inspection) GetInspection(ctx context.Context, id int64) (*inspection.Record, error) {
	const op = "get_inspection"
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	sqlStr, args, err := selectInspections(inspection.Filter{}).Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	rec, err := scanInspection(db.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError(op, err)
	}
	return rec, nil
}

func (m *Inspection) InsertInspection(opts *options.CreateOptions, rec *inspection.Record) (*inspection.Record, error) {
	const op = "insert_inspection"
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	checks, err := json.Marshal(rec.Checks)
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	photos, err := json.Marshal(rec.Photos)
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}

	query := `
		INSERT INTO inspection_exporter.inspection
			(vehicle_id, inspector_id, inspector_name, inspected_at, created_at, odometer, checks, comments, damage_notes, photos)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	var id int64
	err = db.QueryRow(opts, query,
		rec.Vehicle.ID,
		opts.Auth.GetUserId(),
		opts.Auth.GetName(),
		rec.InspectedAt,
		opts.Time,
		rec.Odometer,
		checks,
		rec.Comments,
		rec.DamageNotes,
		photos,
	).Scan(&id)
	if err != nil {
		return nil, mapError(op, err)
	}
	return m.GetInspection(opts, id)
}

func (m *Inspection) DeleteInspection(opts *options.DeleteOptions) ([]*inspection.Record, error) {
	const op = "delete_inspection"
	if len(opts.IDs) == 0 {
		return nil, nil
	}
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}

	tx, err := db.Begin(opts)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer func() { _ = tx.Rollback(opts) }()

	sqlStr, args, err := selectInspections(inspection.Filter{}).Where(sq.Eq{"i.id": opts.IDs}).Suffix("FOR UPDATE OF i").ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	rows, err := tx.Query(opts, sqlStr, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	var deleted []*inspection.Record
	for rows.Next() {
		rec, err := scanInspection(rows)
		if err != nil {
			rows.Close()
			return nil, dberr.NewDBInternalError(op, err)
		}
		deleted = append(deleted, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	if len(deleted) == 0 {
		return nil, dberr.NewDBNotFoundError(op, "inspection not found")
	}

	sqlStr, args, err = psql.Delete(table("inspection")).Where(sq.Eq{"id": opts.IDs}).ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	if _, err := tx.Exec(opts, sqlStr, args...); err != nil {
		return nil, mapError(op, err)
	}
	if err := tx.Commit(opts); err != nil {
		return nil, mapError(op, err)
	}
	return deleted, nil
}

func clearPhotosQuery(ids []int64) sq.UpdateBuilder {
	return psql.Update(table("inspection")).
		Set("photos", sq.Expr("'[]'::jsonb")).
		Where(sq.Eq{"id": ids})
}

func (m *Inspection) ClearPhotos(ctx context.Context, ids []int64) error {
	const op = "clear_photos"
	if len(ids) == 0 {
		return nil
	}
	db, err := m.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError(op, err)
	}
	sqlStr, args, err := clearPhotosQuery(ids).ToSql()
	if err != nil {
		return dberr.NewDBInternalError(op, err)
	}
	if _, err := db.Exec(ctx, sqlStr, args...); err != nil {
		return mapError(op, err)
	}
	return nil
}

func (m *Inspection) ListVehicles(ctx context.Context) ([]inspection.Vehicle, error) {
	const op = "list_vehicles"
	db, err := m.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	sqlStr, args, err := psql.Select("id", "name", "registration").From(table("vehicle")).OrderBy("name", "id").ToSql()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []inspection.Vehicle
	for rows.Next() {
		var v inspection.Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.Registration); err != nil {
			return nil, dberr.NewDBInternalError(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return out, nil
}
