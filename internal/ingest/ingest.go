package ingest

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/ppiankov/provenance/internal/extract"
	"github.com/ppiankov/provenance/internal/extract/adapters"
	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/util"
	"github.com/ppiankov/provenance/internal/validate"
)

// ErrUnsupportedContent is returned for bodies that are neither HTML nor plain text
var ErrUnsupportedContent = errors.New("ingest: unsupported content type")

// ErrNoEntities is returned when a document names no known entity
var ErrNoEntities = errors.New("ingest: no entities given")

// Store is the persistence used by ingestion
type Store interface {
	FindEntity(ctx context.Context, idOrSlug string) (*model.Entity, error)
	PutDocument(ctx context.Context, d *model.RawDocument) error
	AddAsset(ctx context.Context, a *model.MediaAsset) error
}

// PageFetcher fetches a page
type PageFetcher interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error)
}

// Result describes one ingested page
type Result struct {
	Document *model.RawDocument `json:"document"`
	Entities []model.Entity     `json:"entities"`
	Assets   []model.MediaAsset `json:"assets,omitempty"`
	Adapter  string             `json:"adapter,omitempty"` // Site adapter that picked the page text
}

// Ingester stores fetched pages as raw documents and registers their images
// as media candidates of every named entity
type Ingester struct {
	fetcher PageFetcher
	store   Store
	images  *extract.ImageExtractor
	sites   *adapters.Registry
	log     *logger.Logger
	now     func() time.Time
}

// NewIngester creates an ingester
func NewIngester(fetcher PageFetcher, s Store, log *logger.Logger) *Ingester {
	return &Ingester{
		fetcher: fetcher,
		store:   s,
		images:  extract.NewImageExtractor(),
		sites:   adapters.NewRegistry(),
		log:     logger.OrNop(log),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest fetches rawURL and stores it for the given entities (ids or slugs)
func (i *Ingester) Ingest(ctx context.Context, rawURL string, entityRefs []string) (*Result, error) {
	entities, err := i.entities(ctx, entityRefs)
	if err != nil {
		return nil, err
	}

	page, err := i.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if page.Truncated {
		i.log.Warn("page truncated at size limit", "url", rawURL)
	}

	switch mediaType(page.ContentType) {
	case "text/html", "application/xhtml+xml", "":
		return i.storeHTML(ctx, page, entities)
	case "text/plain":
		return i.save(ctx, page.FinalURL, string(page.Body), page.FetchedAt, entities)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, page.ContentType)
	}
}

// IngestText stores already-fetched text as a document of sourceURL
func (i *Ingester) IngestText(ctx context.Context, sourceURL, content string, entityRefs []string) (*Result, error) {
	entities, err := i.entities(ctx, entityRefs)
	if err != nil {
		return nil, err
	}
	return i.save(ctx, sourceURL, content, i.now(), entities)
}

func (i *Ingester) storeHTML(ctx context.Context, page *FetchResult, entities []model.Entity) (*Result, error) {
	html := string(page.Body)
	text, adapter, err := i.sites.Text(html, page.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result, err := i.save(ctx, page.FinalURL, text, page.FetchedAt, entities)
	if err != nil {
		return nil, err
	}
	result.Adapter = adapter

	images, err := i.images.Extract(html, page.FinalURL)
	if err != nil {
		i.log.Warn("image discovery failed", "url", page.FinalURL, "error", err)
		return result, nil
	}
	for _, e := range entities {
		for _, img := range images {
			asset := &model.MediaAsset{
				ID:        util.NewID(),
				Entity:    e.Ref(),
				SourceURL: img.URL,
				AltText:   img.Alt,
			}
			if err := i.store.AddAsset(ctx, asset); err != nil {
				return result, fmt.Errorf("add asset %s: %w", img.URL, err)
			}
			result.Assets = append(result.Assets, *asset)
		}
	}

	i.log.Info("page ingested",
		"url", page.FinalURL,
		"document_id", result.Document.ID,
		"entities", len(entities),
		"images", len(images),
	)
	return result, nil
}

func (i *Ingester) save(ctx context.Context, sourceURL, content string, fetchedAt time.Time, entities []model.Entity) (*Result, error) {
	ids := make([]string, len(entities))
	for n, e := range entities {
		ids[n] = e.ID
	}
	if fetchedAt.IsZero() {
		fetchedAt = i.now()
	}

	doc := &model.RawDocument{
		ID:        util.NewID(),
		URL:       sourceURL,
		Domain:    validate.Domain(sourceURL),
		Content:   strings.TrimSpace(content),
		FetchedAt: fetchedAt,
		EntityIDs: ids,
	}
	if err := i.store.PutDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	return &Result{Document: doc, Entities: entities}, nil
}

func (i *Ingester) entities(ctx context.Context, refs []string) ([]model.Entity, error) {
	var out []model.Entity
	seen := make(map[string]bool)
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		e, err := i.store.FindEntity(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", ref, err)
		}
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, *e)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoEntities
	}
	return out, nil
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}
