// Package rest serves the inspection and export API over HTTP.
package rest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webitel/inspection-exporter/auth"
	"github.com/webitel/inspection-exporter/auth/permission"
	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/exporter"
)

type InspectionService interface {
	Submit(opts *options.CreateOptions, rec *inspection.Record) (*inspection.Record, error)
	Get(ctx context.Context, id int64) (*inspection.Record, error)
	List(opts *options.SearchOptions, filter inspection.Filter) ([]*inspection.Record, bool, error)
	Delete(opts *options.DeleteOptions) (int, error)
	Vehicles(ctx context.Context) ([]inspection.Vehicle, error)
	UploadPhoto(opts *options.CreateOptions, r io.Reader) (*inspection.Photo, error)
	OpenPhoto(ctx context.Context, key string) ([]byte, error)
}

type ExportService interface {
	ExportOne(ctx context.Context, id int64, format exporter.Format) (*exporter.File, error)
	StartBatch(opts *options.CreateOptions, filter inspection.Filter) (*export.JobMetadata, error)
	StartLatest(opts *options.CreateOptions) (*export.JobMetadata, error)
	Status(ctx context.Context, jobID string) (*export.JobMetadata, error)
	Cancel(ctx context.Context, jobID string) error
	Open(ctx context.Context, jobID, name string) (*exporter.File, error)
	History(opts *options.SearchOptions) (*export.HistoryResponse, error)
}

type Handler struct {
	inspections InspectionService
	exports     ExportService
	gate        *permission.Gate
	auth        auth.Manager
	metrics     http.Handler
	log         *slog.Logger
}

func NewHandler(
	inspections InspectionService,
	exports ExportService,
	gate *permission.Gate,
	authManager auth.Manager,
	metrics http.Handler,
	log *slog.Logger,
) (*Handler, error) {
	if inspections == nil || exports == nil || gate == nil || authManager == nil {
		return nil, errors.Internal("missing dependency in rest Handler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		inspections: inspections,
		exports:     exports,
		gate:        gate,
		auth:        authManager,
		metrics:     metrics,
		log:         log,
	}, nil
}

// Routes builds the router. Everything under /v1 needs an identity.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Use(middleware.Timeout(10 * time.Minute))

		r.Get("/permissions", h.permissions)
		r.With(h.require(permission.ViewVehicles)).Get("/vehicles", h.listVehicles)

		r.Route("/inspections", func(r chi.Router) {
			r.With(h.require(permission.ViewInspections)).Get("/", h.listInspections)
			r.With(h.require(permission.CreateInspection)).Post("/", h.submitInspection)
			r.With(h.require(permission.ViewInspections)).Get("/{id}", h.getInspection)
			r.With(h.require(permission.DeleteInspection)).Delete("/{id}", h.deleteInspection)
			r.With(h.require(permission.ExportInspection)).Get("/{id}/export", h.exportInspection)
		})

		r.With(h.require(permission.CreateInspection)).Post("/photos", h.uploadPhoto)
		r.With(h.require(permission.ViewInspections)).Get("/photos/*", h.getPhoto)

		r.Route("/exports", func(r chi.Router) {
			r.Use(h.require(permission.BulkExport))
			r.Get("/", h.exportHistory)
			r.Post("/", h.startBatch)
			r.Post("/latest", h.startLatest)
			r.Get("/{id}", h.exportStatus)
			r.Delete("/{id}", h.cancelExport)
			r.Get("/{id}/files/{name}", h.exportFile)
		})
	})
	return r
}
