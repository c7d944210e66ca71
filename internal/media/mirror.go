package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ppiankov/provenance/internal/ingest"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/storage"
)

// Downloader fetches image bytes
type Downloader interface {
	FetchBytes(ctx context.Context, rawURL string) (*ingest.FetchResult, error)
}

// Mirror copies selected assets into durable storage
type Mirror struct {
	downloader Downloader
	storage    storage.Storage
	prefix     string
}

// NewMirror creates a mirror writing under prefix
func NewMirror(d Downloader, s storage.Storage, prefix string) *Mirror {
	return &Mirror{downloader: d, storage: s, prefix: prefix}
}

// Mirror downloads the asset's source image and stores it. It returns the
// URL the copy is served from; recording it is left to the caller.
func (m *Mirror) Mirror(ctx context.Context, asset model.MediaAsset) (string, error) {
	img, err := m.downloader.FetchBytes(ctx, asset.SourceURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", asset.SourceURL, err)
	}

	key := storage.AssetKey(m.prefix, asset, img.ContentType)
	url, err := m.storage.Put(ctx, key, img.ContentType, bytes.NewReader(img.Body))
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return url, nil
}
