package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	dberr "github.com/webitel/inspection-exporter/internal/errors"
)

func TestSelectInspectionsFilter(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	sqlStr, args, err := selectInspections(inspection.Filter{VehicleIDs: []int64{3, 4}, From: from, To: to}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "FROM inspection_exporter.inspection i JOIN inspection_exporter.vehicle v ON v.id = i.vehicle_id")
	assert.Contains(t, sqlStr, "i.vehicle_id IN ($1,$2)")
	assert.Contains(t, sqlStr, "i.inspected_at >= $3")
	assert.Contains(t, sqlStr, "i.inspected_at <= $4")
	assert.Contains(t, sqlStr, "ORDER BY i.inspected_at DESC, i.created_at DESC, i.id DESC")
	assert.Equal(t, []any{int64(3), int64(4), from, to}, args)
}

func TestSelectInspectionsNoFilter(t *testing.T) {
	sqlStr, args, err := selectInspections(inspection.Filter{}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sqlStr, "WHERE")
	assert.Empty(t, args)
}

func TestClearPhotosQuery(t *testing.T) {
	sqlStr, args, err := clearPhotosQuery([]int64{1, 2}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE inspection_exporter.inspection SET photos = '[]'::jsonb WHERE id IN ($1,$2)", sqlStr)
	assert.Equal(t, []any{int64(1), int64(2)}, args)
}

func TestHistoryQuery(t *testing.T) {
	sqlStr, args, err := historyQuery(7, 3, 20).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "WHERE created_by = $1")
	assert.Contains(t, sqlStr, "LIMIT 21 OFFSET 40")
	assert.Equal(t, []any{int64(7)}, args)
}

func TestUpdateHistoryQuery(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q, err := updateHistoryQuery(&export.UpdateHistory{ID: 5, Status: export.StatusProcessing, UpdatedBy: 2}, now)
	require.NoError(t, err)
	sqlStr, _, err := q.ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sqlStr, "files")

	q, err = updateHistoryQuery(&export.UpdateHistory{
		ID:     5,
		Status: export.StatusDone,
		Files:  []export.File{{Name: "a.zip", Key: "exports/x/a.zip"}},
	}, now)
	require.NoError(t, err)
	sqlStr, _, err = q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sqlStr, "files = $")
}

func TestMapError(t *testing.T) {
	var notFound *dberr.DBNotFoundError
	assert.True(t, errors.As(mapError("op", pgx.ErrNoRows), &notFound))

	var unique *dberr.DBUniqueViolationError
	err := mapError("op", &pgconn.PgError{Code: "23505", ConstraintName: "export_history_job_id_key"})
	require.True(t, errors.As(err, &unique))
	assert.Equal(t, "export_history_job_id_key", unique.Column)
	assert.Equal(t, 409, dberr.Code(err))

	var fk *dberr.DBForeignKeyViolationError
	assert.True(t, errors.As(mapError("op", &pgconn.PgError{Code: "23503", TableName: "vehicle"}), &fk))

	var internal *dberr.DBInternalError
	assert.True(t, errors.As(mapError("op", errors.New("boom")), &internal))
}
