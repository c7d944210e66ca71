// Package ledger is the append-only record of claims and the sources behind them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/provenance/internal/logger"
	"github.com/ppiankov/provenance/internal/model"
	"github.com/ppiankov/provenance/internal/store"
)

var (
	// ErrNoSources is returned when a claim is recorded without evidence
	ErrNoSources = errors.New("ledger: claim has no sources")
	// ErrSnippetBounds is returned for empty or oversized quotes
	ErrSnippetBounds = errors.New("ledger: quote is empty or exceeds bound")
	// ErrInvalidClaim is returned for claims that violate the data model
	ErrInvalidClaim = errors.New("ledger: invalid claim")
	// ErrQuoteNotInDocument is returned when a quote is not verbatim text of its source document
	ErrQuoteNotInDocument = errors.New("ledger: quote is not in the source document")
)

// documentReader is implemented by stores that also hold documents. Quotes of
// sources naming a document are then checked against its content.
type documentReader interface {
	GetDocument(ctx context.Context, id string) (*model.RawDocument, error)
}

const DefaultMaxQuoteChars = 500

// Entry pairs a claim with the sources that support it
type Entry struct {
	Claim   model.Claim
	Sources []model.Source
}

// Ledger validates and appends claim/source pairs
type Ledger struct {
	store         store.ClaimStore
	maxQuoteChars int
	log           *logger.Logger
}

// New creates a ledger over a claim store
func New(s store.ClaimStore, maxQuoteChars int, log *logger.Logger) *Ledger {
	if maxQuoteChars <= 0 {
		maxQuoteChars = DefaultMaxQuoteChars
	}
	return &Ledger{store: s, maxQuoteChars: maxQuoteChars, log: logger.OrNop(log)}
}

// MaxQuoteChars returns the quote bound enforced by Record
func (l *Ledger) MaxQuoteChars() int {
	return l.maxQuoteChars
}

// Record appends every entry in one transaction. Either all claims and
// sources are committed or none are.
func (l *Ledger) Record(ctx context.Context, entries []Entry) error {
	for i := range entries {
		if err := l.validate(&entries[i]); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return nil
	}
	if err := l.checkQuotes(ctx, entries); err != nil {
		return err
	}

	err := l.store.WithClaimTx(ctx, func(tx store.ClaimTx) error {
		for i := range entries {
			e := &entries[i]
			if err := tx.InsertClaim(ctx, &e.Claim); err != nil {
				return err
			}
			for j := range e.Sources {
				if err := tx.InsertSource(ctx, &e.Sources[j]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record %d claims: %w", len(entries), err)
	}

	l.log.Debug("claims recorded", "count", len(entries))
	return nil
}

func (l *Ledger) validate(e *Entry) error {
	c := &e.Claim
	if c.ID == "" || c.EntityID == "" {
		return fmt.Errorf("%w: missing id or entity", ErrInvalidClaim)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: type %q", ErrInvalidClaim, c.Type)
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidClaim, c.Confidence)
	}
	if c.Status == "" {
		c.Status = model.ClaimUnverified
	}
	if len(e.Sources) == 0 {
		return fmt.Errorf("claim %s: %w", c.ID, ErrNoSources)
	}
	for i := range e.Sources {
		s := &e.Sources[i]
		s.ClaimID = c.ID
		if strings.TrimSpace(s.Quote) == "" || utf8.RuneCountInString(s.Quote) > l.maxQuoteChars {
			return fmt.Errorf("claim %s source %s: %w", c.ID, s.ID, ErrSnippetBounds)
		}
		if math.IsNaN(s.Quality) || s.Quality < 0 || s.Quality > 1 {
			return fmt.Errorf("%w: source quality %v outside [0,1]", ErrInvalidClaim, s.Quality)
		}
	}
	return nil
}

// checkQuotes verifies that every quote tied to a stored document is a
// substring of that document
func (l *Ledger) checkQuotes(ctx context.Context, entries []Entry) error {
	docs, ok := l.store.(documentReader)
	if !ok {
		return nil
	}
	content := make(map[string]string)
	for _, e := range entries {
		for _, s := range e.Sources {
			if s.DocumentID == "" {
				continue
			}
			text, seen := content[s.DocumentID]
			if !seen {
				doc, err := docs.GetDocument(ctx, s.DocumentID)
				if err != nil {
					return fmt.Errorf("claim %s source %s: %w", e.Claim.ID, s.ID, err)
				}
				text = doc.Content
				content[s.DocumentID] = text
			}
			if !strings.Contains(text, s.Quote) {
				return fmt.Errorf("claim %s source %s: %w", e.Claim.ID, s.ID, ErrQuoteNotInDocument)
			}
		}
	}
	return nil
}

// HasSources reports whether documentID already backs claims about entityID
func (l *Ledger) HasSources(ctx context.Context, documentID, entityID string) (bool, error) {
	return l.store.HasSources(ctx, documentID, entityID)
}

// Sources returns the sources of a claim in insertion order
func (l *Ledger) Sources(ctx context.Context, claimID string) ([]model.Source, error) {
	return l.store.SourcesFor(ctx, claimID)
}

// ClaimsFor returns the claims of one predicate with their sources
func (l *Ledger) ClaimsFor(ctx context.Context, entityID string, predicate model.ClaimType) ([]model.ClaimWithSources, error) {
	return l.store.ClaimsFor(ctx, entityID, predicate)
}

// ClaimsForEntity returns all claims of an entity with their sources
func (l *Ledger) ClaimsForEntity(ctx context.Context, entityID string) ([]model.ClaimWithSources, error) {
	return l.store.ClaimsForEntity(ctx, entityID)
}

// AllSources returns every stored source
func (l *Ledger) AllSources(ctx context.Context) ([]model.Source, error) {
	return l.store.ListSources(ctx)
}

// UpdateQuality re-scores a source. Quote and URL never change.
func (l *Ledger) UpdateQuality(ctx context.Context, sourceID string, quality float64) error {
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return fmt.Errorf("%w: source quality %v outside [0,1]", ErrInvalidClaim, quality)
	}
	return l.store.UpdateSourceQuality(ctx, sourceID, quality)
}

// SetStatus transitions claims between unverified, verified and conflicting.
// Rejection goes through Reject.
func (l *Ledger) SetStatus(ctx context.Context, status model.ClaimStatus, claimIDs ...string) error {
	if status == model.ClaimRejected {
		return fmt.Errorf("%w: use Reject to reject claims", ErrInvalidClaim)
	}
	return l.store.SetClaimStatus(ctx, status, claimIDs...)
}

// Reject excludes a claim from resolution
func (l *Ledger) Reject(ctx context.Context, claimID, reason string) error {
	if err := l.store.SetClaimStatus(ctx, model.ClaimRejected, claimID); err != nil {
		return err
	}
	l.log.Info("claim rejected", "claim_id", claimID, "reason", reason)
	return nil
}

// Reinstate returns a rejected claim to the unverified pool
func (l *Ledger) Reinstate(ctx context.Context, claimID string) error {
	c, err := l.store.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if c.Status != model.ClaimRejected {
		return nil
	}
	if err := l.store.SetClaimStatus(ctx, model.ClaimUnverified, claimID); err != nil {
		return err
	}
	l.log.Info("claim reinstated", "claim_id", claimID)
	return nil
}

// Claim loads one claim
func (l *Ledger) Claim(ctx context.Context, claimID string) (*model.Claim, error) {
	return l.store.GetClaim(ctx, claimID)
}
