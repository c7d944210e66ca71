// Package storage keeps durable copies of selected media.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/ppiankov/provenance/internal/model"
)

// ErrNotFound is returned when an object does not exist
var ErrNotFound = errors.New("storage: object not found")

// Storage stores objects under slash-separated keys
type Storage interface {
	// Put writes an object and returns the URL it is served from
	Put(ctx context.Context, key, contentType string, data io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StorageType names a storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// New creates the backend selected by cfg
func New(ctx context.Context, cfg model.StorageConfig) (Storage, error) {
	switch StorageType(strings.ToLower(cfg.Driver)) {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalDir, cfg.BaseURL)
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

// AssetKey builds the object key of a mirrored asset:
// <prefix>/<kind>/<entity id>/<asset id><ext>
func AssetKey(prefix string, a model.MediaAsset, contentType string) string {
	return path.Join(sanitize(prefix), sanitize(string(a.Entity.Kind)), sanitize(a.Entity.ID), sanitize(a.ID)+extension(a.SourceURL, contentType))
}

func sanitize(s string) string {
	s = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(s))
	return s
}

// extension picks a file extension from the content type, then the source URL
func extension(sourceURL, contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/avif":
		return ".avif"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}

	p := sourceURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	if len(ext) > 1 && len(ext) <= 5 {
		return ext
	}
	return ".bin"
}
