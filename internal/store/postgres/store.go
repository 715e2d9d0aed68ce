package postgres

import (
	"context"
	"errors"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	otelpgx "github.com/webitel/webitel-go-kit/infra/otel/instrumentation/pgx"

	conf "github.com/webitel/inspection-exporter/config"
	dberr "github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/store"
)

const schema = "inspection_exporter"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the struct implementing the Store interface.
type Store struct {
	inspectionStore store.InspectionStore
	exportStore     store.ExportStore
	config          *conf.DatabaseConfig
	conn            *pgxpool.Pool
}

// New creates a new Store instance.
func New(config *conf.DatabaseConfig) *Store {
	return &Store{config: config}
}

func (s *Store) Inspection() store.InspectionStore {
	if s.inspectionStore == nil {
		s.inspectionStore = &Inspection{storage: s}
	}
	return s.inspectionStore
}

func (s *Store) Export() store.ExportStore {
	if s.exportStore == nil {
		s.exportStore = &Export{storage: s}
	}
	return s.exportStore
}

// Database returns the database connection or a custom error if it is not opened.
func (s *Store) Database() (*pgxpool.Pool, error) {
	if s.conn == nil {
		return nil, dberr.New("database connection is not opened")
	}
	return s.conn, nil
}

// Open establishes a connection to the database and returns a custom error if it fails.
func (s *Store) Open() error {
	config, err := pgxpool.ParseConfig(s.config.Url)
	if err != nil {
		return dberr.NewDBInternalError("open", err)
	}

	// Attach the OpenTelemetry tracer for pgx
	config.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	conn, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return dberr.NewDBInternalError("open", err)
	}
	s.conn = conn
	slog.Debug("inspection_exporter.store.connection_opened", slog.String("message", "postgres: connection opened"))
	return nil
}

// Close closes the database connection and returns a custom error if it fails.
func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
		slog.Debug("inspection_exporter.store.connection_closed", slog.String("message", "postgres: connection closed"))
		s.conn = nil
	}
	return nil
}

// mapError turns driver errors into the dberr family.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return dberr.NewDBNotFoundError(op, "not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &dberr.DBUniqueViolationError{
				DBError: *dberr.NewDBError(op, pgErr.Message),
				Column:  pgErr.ConstraintName,
			}
		case "23503": // foreign_key_violation
			return &dberr.DBForeignKeyViolationError{
				DBError:         *dberr.NewDBError(op, pgErr.Message),
				ForeignKeyTable: pgErr.TableName,
			}
		}
	}
	return dberr.NewDBInternalError(op, err)
}

func table(name string) string { return schema + "." + name }
