package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// FactResult is the resolved outcome for one (entity, predicate) pair.
// It is a closed sum type: ValidFact, ConflictingFact or UnverifiedFact.
type FactResult interface {
	Predicate() ClaimType
	Kind() FactKind
	isFactResult()
}

// FactKind discriminates FactResult variants on the wire
type FactKind string

const (
	FactValid       FactKind = "valid"
	FactConflicting FactKind = "conflicting"
	FactUnverified  FactKind = "unverified"
)

// FactStatus is the verification status of a ValidFact
type FactStatus string

const (
	FactStatusVerified   FactStatus = "verified"
	FactStatusUnverified FactStatus = "unverified"
)

// ValidFact is a predicate with a single trusted value
type ValidFact struct {
	Type       ClaimType  `json:"predicate"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Status     FactStatus `json:"status"`
	Evidence   string     `json:"evidence"`    // Quote of a stored Source
	SourceName string     `json:"source_name"` // Domain of that Source
	SourceURL  string     `json:"source_url"`
	FetchedAt  time.Time  `json:"fetched_at"`
	ClaimID    string     `json:"claim_id"`
	SourceID   string     `json:"source_id"`
	Supporting int        `json:"supporting_claims"` // Agreeing claims behind the value
}

// ConflictValue is one of the competing values of a ConflictingFact
type ConflictValue struct {
	Value      string    `json:"value"`
	SourceName string    `json:"source_name"`
	SourceURL  string    `json:"source_url"`
	Quality    float64   `json:"quality"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// ConflictingFact surfaces credible but differing values without choosing one
type ConflictingFact struct {
	Type   ClaimType       `json:"predicate"`
	Text   string          `json:"text"`
	Values []ConflictValue `json:"values"`
}

// UnverifiedFact marks a predicate without sufficient evidence
type UnverifiedFact struct {
	Type ClaimType `json:"predicate"`
	Text string    `json:"text"`
}

func (f ValidFact) Predicate() ClaimType       { return f.Type }
func (f ConflictingFact) Predicate() ClaimType { return f.Type }
func (f UnverifiedFact) Predicate() ClaimType  { return f.Type }

func (ValidFact) Kind() FactKind       { return FactValid }
func (ConflictingFact) Kind() FactKind { return FactConflicting }
func (UnverifiedFact) Kind() FactKind  { return FactUnverified }

func (ValidFact) isFactResult()       {}
func (ConflictingFact) isFactResult() {}
func (UnverifiedFact) isFactResult()  {}

type factEnvelope struct {
	Kind FactKind        `json:"kind"`
	Fact json.RawMessage `json:"fact"`
}

// MarshalFactResult encodes a FactResult with its kind discriminator
func MarshalFactResult(f FactResult) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(factEnvelope{Kind: f.Kind(), Fact: body})
}

// UnmarshalFactResult decodes a FactResult produced by MarshalFactResult
func UnmarshalFactResult(data []byte) (FactResult, error) {
	var env factEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode fact envelope: %w", err)
	}

	switch env.Kind {
	case FactValid:
		var f ValidFact
		if err := json.Unmarshal(env.Fact, &f); err != nil {
			return nil, fmt.Errorf("decode valid fact: %w", err)
		}
		return f, nil
	case FactConflicting:
		var f ConflictingFact
		if err := json.Unmarshal(env.Fact, &f); err != nil {
			return nil, fmt.Errorf("decode conflicting fact: %w", err)
		}
		return f, nil
	case FactUnverified:
		var f UnverifiedFact
		if err := json.Unmarshal(env.Fact, &f); err != nil {
			return nil, fmt.Errorf("decode unverified fact: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fact kind: %q", env.Kind)
	}
}

// MarshalFactResults encodes a list of results, preserving order
func MarshalFactResults(facts []FactResult) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(facts))
	for _, f := range facts {
		b, err := MarshalFactResult(f)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

// UnmarshalFactResults decodes the output of MarshalFactResults
func UnmarshalFactResults(data []byte) ([]FactResult, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode fact list: %w", err)
	}
	facts := make([]FactResult, 0, len(raw))
	for _, r := range raw {
		f, err := UnmarshalFactResult(r)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, nil
}
