// Package extract turns raw documents into claims backed by verbatim evidence.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/provenance/internal/ledger"
	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/util"
	"github.com/ppiankov/provenance/internal/validate"
)

var (
	// ErrInference is returned when the inference provider fails
	ErrInference = errors.New("extract: inference failed")
	// ErrUnparseable is returned when the provider reply cannot be decoded
	ErrUnparseable = errors.New("extract: unparseable inference output")
	// ErrInsufficientContent is returned for documents too short to extract from
	ErrInsufficientContent = errors.New("extract: insufficient content")
)

// ExtractionError reports a failed extraction of one document.
// Nothing was committed for the document and the call may be retried.
type ExtractionError struct {
	DocumentID string
	EntityID   string
	Kind       error // ErrInference or ErrUnparseable
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract document %s for entity %s: %v", e.DocumentID, e.EntityID, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// QualityScorer assigns the initial quality of a source by its URL
type QualityScorer interface {
	Quality(rawURL string) float64
}

// Result describes one document extraction
type Result struct {
	DocumentID string        `json:"document_id"`
	EntityID   string        `json:"entity_id"`
	Finder     string        `json:"finder"`
	Claims     []model.Claim `json:"claims"`
	Candidates int           `json:"candidates"`
	Dropped    int           `json:"dropped"` // Candidates whose evidence was not found in the document
	Skipped    bool          `json:"skipped"` // Document already extracted for this entity
}

// Options configures an Extractor
type Options struct {
	MinContentChars int
	MaxSnippetChars int
}

// Extractor extracts claims and their sources from documents
type Extractor struct {
	finder  Finder
	ledger  *ledger.Ledger
	quality QualityScorer
	opts    Options
	log     *logger.Logger
	now     func() time.Time
}

// NewExtractor creates an extractor that records into l
func NewExtractor(finder Finder, l *ledger.Ledger, quality QualityScorer, opts Options, log *logger.Logger) *Extractor {
	if opts.MinContentChars <= 0 {
		opts.MinContentChars = model.DefaultConfig().Extraction.MinContentChars
	}
	if opts.MaxSnippetChars <= 0 || opts.MaxSnippetChars > l.MaxQuoteChars() {
		opts.MaxSnippetChars = l.MaxQuoteChars()
	}
	return &Extractor{
		finder:  finder,
		ledger:  l,
		quality: quality,
		opts:    opts,
		log:     logger.OrNop(log),
		now:     time.Now,
	}
}

// Extract finds claims about entity in doc and records them with their
// evidence in one ledger transaction. A document already extracted for the
// entity is skipped.
func (e *Extractor) Extract(ctx context.Context, doc model.RawDocument, entity model.Entity) (*Result, error) {
	result := &Result{DocumentID: doc.ID, EntityID: entity.ID, Finder: e.finder.Name()}

	if utf8.RuneCountInString(strings.TrimSpace(doc.Content)) < e.opts.MinContentChars {
		return result, fmt.Errorf("document %s: %w", doc.ID, ErrInsufficientContent)
	}

	done, err := e.ledger.HasSources(ctx, doc.ID, entity.ID)
	if err != nil {
		return result, fmt.Errorf("check existing sources: %w", err)
	}
	if done {
		result.Skipped = true
		e.log.Debug("document already extracted", "document_id", doc.ID, "entity_id", entity.ID)
		return result, nil
	}

	candidates, err := e.finder.Find(ctx, doc, entity)
	if err != nil {
		kind := ErrInference
		if errors.Is(err, ErrUnparseable) {
			kind = ErrUnparseable
		}
		return result, &ExtractionError{DocumentID: doc.ID, EntityID: entity.ID, Kind: kind, Err: err}
	}
	candidates = dedupeCandidates(candidates)
	result.Candidates = len(candidates)

	entries := make([]ledger.Entry, 0, len(candidates))
	for _, c := range candidates {
		entry, ok := e.toEntry(doc, entity, c)
		if !ok {
			result.Dropped++
			e.log.Debug("candidate dropped, evidence not in document",
				"document_id", doc.ID,
				"type", c.Type,
				"snippet", c.Snippet)
			continue
		}
		entries = append(entries, entry)
	}

	if err := e.ledger.Record(ctx, entries); err != nil {
		return result, err
	}
	for _, entry := range entries {
		result.Claims = append(result.Claims, entry.Claim)
	}

	e.log.Info("document extracted",
		"document_id", doc.ID,
		"entity_id", entity.ID,
		"finder", result.Finder,
		"claims", len(result.Claims),
		"dropped", result.Dropped)
	return result, nil
}

func (e *Extractor) toEntry(doc model.RawDocument, entity model.Entity, c Candidate) (ledger.Entry, bool) {
	quote, found := locateSnippet(doc.Content, c.Snippet, e.opts.MaxSnippetChars)
	if !found {
		return ledger.Entry{}, false
	}

	text := strings.Join(strings.Fields(c.Text), " ")
	if text == "" {
		text = quote
	}

	now := e.now().UTC()
	claim := model.Claim{
		ID:         util.NewID(),
		EntityID:   entity.ID,
		DocumentID: doc.ID,
		Type:       model.NormalizeClaimType(c.Type),
		Text:       text,
		Value:      normalizeValue(c.Value),
		Confidence: clampConfidence(c.Confidence),
		Status:     model.ClaimUnverified,
		CreatedAt:  now,
	}

	quality := 0.0
	if e.quality != nil {
		quality = clampConfidence(e.quality.Quality(doc.URL))
	}
	domain := doc.Domain
	if domain == "" {
		domain = validate.Domain(doc.URL)
	}
	fetchedAt := doc.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = now
	}
	source := model.Source{
		ID:         util.NewID(),
		ClaimID:    claim.ID,
		DocumentID: doc.ID,
		URL:        doc.URL,
		Domain:     domain,
		Quote:      quote,
		Quality:    quality,
		FetchedAt:  fetchedAt,
	}

	return ledger.Entry{Claim: claim, Sources: []model.Source{source}}, true
}

// clampConfidence clamps v into [0,1]; NaN becomes 0
func clampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// normalizeValue keeps strings, numbers and arrays of those. Anything else,
// including null and objects, is dropped and the claim text stands in.
func normalizeValue(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
	case float64:
	case []any:
		if len(t) == 0 {
			return nil
		}
		for _, item := range t {
			switch item.(type) {
			case string, float64:
			default:
				return nil
			}
		}
	default:
		return nil
	}

	compact := new(bytes.Buffer)
	if err := json.Compact(compact, raw); err != nil {
		return nil
	}
	return compact.Bytes()
}
