package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobstores(t *testing.T) {
	fsStore, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	cases := []struct {
		name  string
		store Blobstore
	}{
		{"memory", NewMemory()},
		{"filesystem", fsStore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			_, err := tc.store.Get(ctx, "photos/1/a.jpg")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, tc.store.Put(ctx, "photos/1/a.jpg", []byte("jpeg"), "image/jpeg"))
			got, err := tc.store.Get(ctx, "photos/1/a.jpg")
			require.NoError(t, err)
			assert.Equal(t, []byte("jpeg"), got)

			require.NoError(t, tc.store.Delete(ctx, "photos/1/a.jpg"))
			require.NoError(t, tc.store.Delete(ctx, "photos/1/a.jpg"))
			_, err = tc.store.Get(ctx, "photos/1/a.jpg")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Put(context.Background(), "../outside", []byte("x"), ""))
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "ftp"})
	assert.Error(t, err)
}
