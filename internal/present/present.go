// Package present converts fact results into display views.
//
// Only verified values and conflicts are rendered. Unverified values never
// reach a reader, and a value without evidence is not shown at all.
package present

import (
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/provenance/internal/model"
)

// EmptyMessage is shown when an entity has nothing renderable
const EmptyMessage = "No verified facts. Unverified information is not displayed."

// Badge labels how a fact is displayed
type Badge string

const (
	BadgeVerified    Badge = "verified"
	BadgeConflicting Badge = "conflicting"
	BadgeUnverified  Badge = "unverified"
	BadgeUnknown     Badge = "unknown"
)

// SourceView names the source behind a displayed value
type SourceView struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

// ConflictView is one competing value of a conflict
type ConflictView struct {
	Value  string     `json:"value"`
	Source SourceView `json:"source"`
}

// FactView is the display form of one fact result
type FactView struct {
	Predicate    model.ClaimType `json:"predicate"`
	Label        string          `json:"label"`
	Badge        Badge           `json:"badge"`
	Render       bool            `json:"render"`
	ShowEvidence bool            `json:"show_evidence"`
	Value        string          `json:"value,omitempty"`
	Evidence     string          `json:"evidence,omitempty"`
	Source       *SourceView     `json:"source,omitempty"`
	Conflicts    []ConflictView  `json:"conflicts,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Present builds the view of one fact result
func Present(result model.FactResult, showEvidence bool) FactView {
	switch f := result.(type) {
	case model.ValidFact:
		return presentValid(f, showEvidence)
	case model.ConflictingFact:
		return presentConflict(f, showEvidence)
	case model.UnverifiedFact:
		return FactView{
			Predicate: f.Type,
			Label:     Label(f.Type),
			Badge:     BadgeUnverified,
			Message:   f.Text,
		}
	default:
		v := FactView{Badge: BadgeUnknown}
		if result != nil {
			v.Predicate = result.Predicate()
			v.Label = Label(v.Predicate)
		}
		return v
	}
}

func presentValid(f model.ValidFact, showEvidence bool) FactView {
	v := FactView{Predicate: f.Type, Label: Label(f.Type)}

	// A value is only as good as the quote behind it
	if strings.TrimSpace(f.Evidence) == "" || (f.SourceName == "" && f.SourceURL == "") {
		v.Badge = BadgeUnknown
		return v
	}
	if f.Status != model.FactStatusVerified {
		v.Badge = BadgeUnverified
		return v
	}

	v.Badge = BadgeVerified
	v.Render = true
	v.Value = f.Value
	v.ShowEvidence = showEvidence
	v.Source = &SourceView{Name: f.SourceName, URL: f.SourceURL, FetchedAt: f.FetchedAt}
	if showEvidence {
		v.Evidence = f.Evidence
	}
	return v
}

func presentConflict(f model.ConflictingFact, showEvidence bool) FactView {
	v := FactView{
		Predicate:    f.Type,
		Label:        Label(f.Type),
		Badge:        BadgeConflicting,
		Render:       true,
		ShowEvidence: showEvidence,
		Message:      f.Text,
	}
	for _, c := range f.Values {
		v.Conflicts = append(v.Conflicts, ConflictView{
			Value:  c.Value,
			Source: SourceView{Name: c.SourceName, URL: c.SourceURL, FetchedAt: c.FetchedAt},
		})
	}
	return v
}

// Label returns the human name of a predicate
func Label(p model.ClaimType) string {
	s := strings.ReplaceAll(string(p), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// EntityView is the display form of every fact about an entity
type EntityView struct {
	EntityID     string     `json:"entity_id"`
	ShowEvidence bool       `json:"show_evidence"`
	Facts        []FactView `json:"facts"`
	Empty        bool       `json:"empty"`
	Message      string     `json:"message,omitempty"`
}

// PresentEntity renders the facts of an entity, keeping only renderable views
func PresentEntity(entityID string, results []model.FactResult, toggle *EvidenceToggle) EntityView {
	show := toggle.Visible(entityID)
	view := EntityView{EntityID: entityID, ShowEvidence: show, Facts: []FactView{}}

	for _, r := range results {
		if fv := Present(r, show); fv.Render {
			view.Facts = append(view.Facts, fv)
		}
	}
	if len(view.Facts) == 0 {
		view.Empty = true
		view.Message = EmptyMessage
	}
	return view
}

// EvidenceToggle remembers per entity whether evidence is shown.
// Evidence is visible until hidden. A nil toggle always shows evidence.
type EvidenceToggle struct {
	mu     sync.RWMutex
	hidden map[string]bool
}

// NewEvidenceToggle creates a toggle with evidence visible everywhere
func NewEvidenceToggle() *EvidenceToggle {
	return &EvidenceToggle{hidden: make(map[string]bool)}
}

// Visible reports whether evidence is shown for an entity
func (t *EvidenceToggle) Visible(entityID string) bool {
	if t == nil {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.hidden[entityID]
}

// Set shows or hides evidence for an entity
func (t *EvidenceToggle) Set(entityID string, visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if visible {
		delete(t.hidden, entityID)
		return
	}
	t.hidden[entityID] = true
}

// Toggle flips evidence visibility for an entity and returns the new state
func (t *EvidenceToggle) Toggle(entityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hidden[entityID] {
		delete(t.hidden, entityID)
		return true
	}
	t.hidden[entityID] = true
	return false
}
