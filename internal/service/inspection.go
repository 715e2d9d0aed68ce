package service

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/domain/model/options"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/retention"
	"github.com/webitel/inspection-exporter/internal/storage"
	"github.com/webitel/inspection-exporter/internal/store"
)

// PhotoPrefix is the storage key prefix of uploaded inspection photos.
const PhotoPrefix = "photos/"

type InspectionService struct {
	store     store.InspectionStore
	blobs     storage.Blobstore
	retention *retention.Policy
	encoder   ImageEncoder
	// photoURL is prepended to a photo key to build its public URL.
	photoURL string
	log      *slog.Logger
}

func NewInspectionService(
	s store.InspectionStore,
	blobs storage.Blobstore,
	policy *retention.Policy,
	encoder ImageEncoder,
	photoURL string,
	log *slog.Logger,
) (*InspectionService, error) {
	if s == nil || blobs == nil {
		return nil, errors.Internal("store or blob storage is nil in InspectionService")
	}
	if encoder == nil {
		encoder = NewJPEGEncoder(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &InspectionService{
		store:     s,
		blobs:     blobs,
		retention: policy,
		encoder:   encoder,
		photoURL:  strings.TrimSuffix(photoURL, "/"),
		log:       log,
	}, nil
}

// Submit stores a new inspection and then trims older photos of the same
// vehicle. Retention never fails the submission.
func (s *InspectionService) Submit(opts *options.CreateOptions, rec *inspection.Record) (*inspection.Record, error) {
	if rec == nil {
		return nil, errors.BadRequest("inspection is required", errors.WithID("inspection.invalid"))
	}
	if err := rec.Validate(); err != nil {
		return nil, errors.BadRequest(err.Error(), errors.WithID("inspection.invalid"))
	}
	saved, err := s.store.InsertInspection(opts, rec)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(opts, "inspection.submit.saved",
		slog.Int64("inspection_id", saved.ID),
		slog.Int64("vehicle_id", saved.Vehicle.ID),
		slog.Int64("user_id", opts.Auth.GetUserId()),
	)

	if s.retention != nil {
		report, err := s.retention.Apply(context.WithoutCancel(opts), saved.Vehicle.ID)
		if err != nil {
			s.log.WarnContext(opts, "inspection.retention.failed",
				slog.Int64("vehicle_id", saved.Vehicle.ID),
				slog.String("error", err.Error()),
			)
		} else if len(report.Cleared) > 0 {
			s.log.InfoContext(opts, "inspection.retention.applied",
				slog.Int64("vehicle_id", saved.Vehicle.ID),
				slog.Int("cleared", len(report.Cleared)),
				slog.Int("deleted_photos", report.DeletedPhotos),
				slog.Int("failed_photos", report.FailedPhotos),
			)
		}
	}
	return saved, nil
}

func (s *InspectionService) Get(ctx context.Context, id int64) (*inspection.Record, error) {
	if id <= 0 {
		return nil, errors.BadRequest("id is required")
	}
	return s.store.GetInspection(ctx, id)
}

func (s *InspectionService) List(opts *options.SearchOptions, filter inspection.Filter) ([]*inspection.Record, bool, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, false, errors.BadRequest("'to' must not be before 'from'")
	}
	return s.store.SearchInspections(opts, filter)
}

// Delete removes the inspections and then their stored photos. Photo
// objects that cannot be deleted are only logged.
func (s *InspectionService) Delete(opts *options.DeleteOptions) (int, error) {
	if len(opts.IDs) == 0 {
		return 0, errors.BadRequest("id is required for delete operation")
	}
	deleted, err := s.store.DeleteInspection(opts)
	if err != nil {
		return 0, err
	}
	if len(deleted) == 0 {
		return 0, errors.NotFound("inspection not found")
	}
	ctx := context.WithoutCancel(opts)
	for _, rec := range deleted {
		for _, p := range rec.Photos {
			if p.Path == "" {
				continue
			}
			if err := s.blobs.Delete(ctx, p.Path); err != nil {
				s.log.WarnContext(ctx, "inspection.delete.photo_failed",
					slog.Int64("inspection_id", rec.ID),
					slog.String("path", p.Path),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	s.log.InfoContext(ctx, "inspection.delete.done",
		slog.Int("count", len(deleted)),
		slog.Int64("user_id", opts.Auth.GetUserId()),
	)
	return len(deleted), nil
}

func (s *InspectionService) Vehicles(ctx context.Context) ([]inspection.Vehicle, error) {
	return s.store.ListVehicles(ctx)
}

// UploadPhoto encodes and stores one photo and returns the reference to put
// on a submission.
func (s *InspectionService) UploadPhoto(opts *options.CreateOptions, r io.Reader) (*inspection.Photo, error) {
	data, contentType, err := s.encoder.Encode(r)
	if err != nil {
		return nil, errors.BadRequest("photo could not be read", errors.WithID("photo.invalid"), errors.WithCause(err))
	}
	key := path.Join(PhotoPrefix, strconv.FormatInt(opts.Auth.GetUserId(), 10), uuid.NewString()+s.encoder.Extension())
	if err := s.blobs.Put(opts, key, data, contentType); err != nil {
		return nil, errors.Internal("failed to store photo", errors.WithCause(err))
	}
	return &inspection.Photo{URL: s.photoURL + "/" + key, Path: key}, nil
}

// OpenPhoto reads a stored photo. Only keys under PhotoPrefix are served.
func (s *InspectionService) OpenPhoto(ctx context.Context, key string) ([]byte, error) {
	key = path.Clean("/" + key)[1:]
	if !strings.HasPrefix(key, PhotoPrefix) {
		return nil, errors.NotFound("photo not found")
	}
	data, err := s.blobs.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFound("photo not found", errors.WithCause(err))
	}
	return data, err
}
