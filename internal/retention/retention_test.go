package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	records  []*inspection.Record
	clearErr error
}

func (f *fakeStore) ListInspections(_ context.Context, filter inspection.Filter) ([]*inspection.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*inspection.Record
	for _, r := range f.records {
		for _, id := range filter.VehicleIDs {
			if r.Vehicle.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ClearPhotos(_ context.Context, ids []int64) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		for _, id := range ids {
			if r.ID == id {
				r.Photos = nil
			}
		}
	}
	return nil
}

func photos(id int64) []inspection.Photo {
	out := make([]inspection.Photo, 0, inspection.RequiredPhotos)
	for i := 0; i < inspection.RequiredPhotos; i++ {
		key := fmt.Sprintf("photos/%d/%d.jpg", id, i)
		out = append(out, inspection.Photo{URL: "/files/" + key, Path: key})
	}
	return out
}

func seed(t *testing.T, blobs storage.Blobstore, n int) *fakeStore {
	t.Helper()
	st := &fakeStore{}
	for i := 1; i <= n; i++ {
		r := &inspection.Record{
			ID:          int64(i),
			Vehicle:     inspection.Vehicle{ID: 1},
			InspectedAt: time.Date(2024, 1, i*7, 0, 0, 0, 0, time.UTC),
			Photos:      photos(int64(i)),
		}
		for _, p := range r.Photos {
			require.NoError(t, blobs.Put(context.Background(), p.Path, []byte("jpeg"), "image/jpeg"))
		}
		st.records = append(st.records, r)
	}
	st.records = append(st.records, &inspection.Record{ID: 99, Vehicle: inspection.Vehicle{ID: 2}, Photos: photos(99)})
	return st
}

func TestApplyKeepsThreeNewest(t *testing.T) {
	blobs := storage.NewMemory()
	st := seed(t, blobs, 5)
	p := New(st, blobs, DefaultKeep, nil)

	report, err := p.Apply(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, report.Cleared)
	assert.Equal(t, 8, report.DeletedPhotos)
	assert.Zero(t, report.FailedPhotos)

	for _, r := range st.records[:2] {
		assert.Empty(t, r.Photos)
	}
	for _, r := range st.records[2:5] {
		assert.Len(t, r.Photos, inspection.RequiredPhotos)
	}
	assert.Len(t, st.records[5].Photos, inspection.RequiredPhotos)

	for _, key := range blobs.Keys() {
		assert.NotContains(t, key, "photos/1/")
		assert.NotContains(t, key, "photos/2/")
	}
	assert.Len(t, blobs.Keys(), 3*inspection.RequiredPhotos)

	again, err := p.Apply(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, again.Cleared)
}

func TestApplyFewerThanKeep(t *testing.T) {
	blobs := storage.NewMemory()
	st := seed(t, blobs, 3)
	report, err := New(st, blobs, DefaultKeep, nil).Apply(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, report.Cleared)
	assert.Len(t, blobs.Keys(), 4*inspection.RequiredPhotos)
}

type flakyBlobs struct {
	*storage.MemoryStore
}

func (f flakyBlobs) Delete(ctx context.Context, key string) error {
	if key == "photos/1/0.jpg" {
		return errors.New("permission denied")
	}
	return f.MemoryStore.Delete(ctx, key)
}

func TestApplyDeleteFailureIsNotFatal(t *testing.T) {
	mem := storage.NewMemory()
	st := seed(t, mem, 4)
	report, err := New(st, flakyBlobs{mem}, DefaultKeep, nil).Apply(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, report.Cleared)
	assert.Equal(t, 3, report.DeletedPhotos)
	assert.Equal(t, 1, report.FailedPhotos)
	assert.Empty(t, st.records[0].Photos)
}

func TestApplyClearFailure(t *testing.T) {
	blobs := storage.NewMemory()
	st := seed(t, blobs, 4)
	st.clearErr = errors.New("db down")
	_, err := New(st, blobs, DefaultKeep, nil).Apply(context.Background(), 1)
	assert.ErrorContains(t, err, "db down")
}
