package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/storage"
)

const maxPhotoBytes = 20 << 20

// BlobPhotoLoader reads photos we store ourselves from blob storage and
// fetches the rest by URL.
type BlobPhotoLoader struct {
	blobs  storage.Blobstore
	client *http.Client
}

func NewBlobPhotoLoader(blobs storage.Blobstore, client *http.Client) *BlobPhotoLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &BlobPhotoLoader{blobs: blobs, client: client}
}

func (l *BlobPhotoLoader) Load(ctx context.Context, photo inspection.Photo) (image.Image, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case photo.Path != "" && l.blobs != nil:
		data, err = l.blobs.Get(ctx, photo.Path)
	case photo.URL != "":
		data, err = l.fetch(ctx, photo.URL)
	default:
		return nil, fmt.Errorf("photo has neither path nor url")
	}
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return img, nil
}

func (l *BlobPhotoLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch photo: unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}
