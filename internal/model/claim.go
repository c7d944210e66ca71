package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Claim represents an atomic, typed assertion about an entity extracted from one document
type Claim struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entity_id"`
	DocumentID string          `json:"document_id"`
	Type       ClaimType       `json:"type"`            // Predicate, always a member of the closed enum
	Text       string          `json:"text"`            // Claim text as extracted
	Value      json.RawMessage `json:"value,omitempty"` // Optional structured value (string, number or ordered list)
	Confidence float64         `json:"confidence"`      // Clamped to [0,1]
	Status     ClaimStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ClaimStatus is the verification state of a claim
type ClaimStatus string

const (
	ClaimUnverified  ClaimStatus = "unverified"
	ClaimVerified    ClaimStatus = "verified"
	ClaimConflicting ClaimStatus = "conflicting"
	ClaimRejected    ClaimStatus = "rejected"
)

// ClaimType categorizes the predicate of a claim
type ClaimType string

const (
	ClaimTypeBioFact          ClaimType = "bio_fact"
	ClaimTypeRealName         ClaimType = "real_name"
	ClaimTypeAlias            ClaimType = "alias"
	ClaimTypeBirthDate        ClaimType = "birth_date"
	ClaimTypeBirthplace       ClaimType = "birthplace"
	ClaimTypeFoundedYear      ClaimType = "founded_year"
	ClaimTypeLocation         ClaimType = "location"
	ClaimTypeRelease          ClaimType = "release"
	ClaimTypeLabelAffiliation ClaimType = "label_affiliation"
	ClaimTypeGenre            ClaimType = "genre"
	ClaimTypeInfluence        ClaimType = "influence"
	ClaimTypeCollaborator     ClaimType = "collaborator"
	ClaimTypeMembership       ClaimType = "membership"
	ClaimTypeAward            ClaimType = "award"
	ClaimTypeEquipment        ClaimType = "equipment"
	ClaimTypeQuote            ClaimType = "quote"
	ClaimTypeOther            ClaimType = "other" // Fallback bucket for anything outside the enum
)

// ClaimTypes lists every member of the closed enum in display order
var ClaimTypes = []ClaimType{
	ClaimTypeRealName,
	ClaimTypeAlias,
	ClaimTypeBirthDate,
	ClaimTypeBirthplace,
	ClaimTypeFoundedYear,
	ClaimTypeLocation,
	ClaimTypeBioFact,
	ClaimTypeGenre,
	ClaimTypeLabelAffiliation,
	ClaimTypeMembership,
	ClaimTypeRelease,
	ClaimTypeCollaborator,
	ClaimTypeInfluence,
	ClaimTypeAward,
	ClaimTypeEquipment,
	ClaimTypeQuote,
	ClaimTypeOther,
}

var claimTypeAliases = map[string]ClaimType{
	"bio":            ClaimTypeBioFact,
	"biography":      ClaimTypeBioFact,
	"fact":           ClaimTypeBioFact,
	"name":           ClaimTypeRealName,
	"legal_name":     ClaimTypeRealName,
	"birth_name":     ClaimTypeRealName,
	"aka":            ClaimTypeAlias,
	"pseudonym":      ClaimTypeAlias,
	"stage_name":     ClaimTypeAlias,
	"born":           ClaimTypeBirthDate,
	"birthday":       ClaimTypeBirthDate,
	"date_of_birth":  ClaimTypeBirthDate,
	"birth_place":    ClaimTypeBirthplace,
	"place_of_birth": ClaimTypeBirthplace,
	"hometown":       ClaimTypeBirthplace,
	"founded":        ClaimTypeFoundedYear,
	"founding_year":  ClaimTypeFoundedYear,
	"year_founded":   ClaimTypeFoundedYear,
	"established":    ClaimTypeFoundedYear,
	"city":           ClaimTypeLocation,
	"address":        ClaimTypeLocation,
	"based_in":       ClaimTypeLocation,
	"album":          ClaimTypeRelease,
	"ep":             ClaimTypeRelease,
	"single":         ClaimTypeRelease,
	"discography":    ClaimTypeRelease,
	"label":          ClaimTypeLabelAffiliation,
	"record_label":   ClaimTypeLabelAffiliation,
	"signed_to":      ClaimTypeLabelAffiliation,
	"style":          ClaimTypeGenre,
	"genres":         ClaimTypeGenre,
	"influenced_by":  ClaimTypeInfluence,
	"influences":     ClaimTypeInfluence,
	"collaboration":  ClaimTypeCollaborator,
	"collaborators":  ClaimTypeCollaborator,
	"member":         ClaimTypeMembership,
	"member_of":      ClaimTypeMembership,
	"crew":           ClaimTypeMembership,
	"prize":          ClaimTypeAward,
	"awards":         ClaimTypeAward,
	"gear":           ClaimTypeEquipment,
	"instrument":     ClaimTypeEquipment,
	"setup":          ClaimTypeEquipment,
	"citation":       ClaimTypeQuote,
}

// NormalizeClaimType coerces a free-form type into the closed enum.
// Unknown values land in ClaimTypeOther rather than being rejected.
func NormalizeClaimType(raw string) ClaimType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	for _, t := range ClaimTypes {
		if string(t) == key {
			return t
		}
	}
	if t, ok := claimTypeAliases[key]; ok {
		return t
	}
	return ClaimTypeOther
}

// IsValid reports whether t is a member of the closed enum
func (t ClaimType) IsValid() bool {
	for _, known := range ClaimTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Cumulative reports whether distinct values of t can all hold at once.
// Free-text statements add up instead of contradicting each other.
func (t ClaimType) Cumulative() bool {
	switch t {
	case ClaimTypeBioFact, ClaimTypeQuote, ClaimTypeOther:
		return true
	}
	return false
}

// Source links a claim to the document excerpt supporting it.
// Quote and URL are fixed at creation; only Quality may change.
type Source struct {
	ID         string    `json:"id"`
	ClaimID    string    `json:"claim_id"`
	DocumentID string    `json:"document_id,omitempty"`
	URL        string    `json:"url"`
	Domain     string    `json:"domain"`
	Quote      string    `json:"quote"`   // Verbatim excerpt of the source document
	Quality    float64   `json:"quality"` // Source quality in [0,1]
	FetchedAt  time.Time `json:"fetched_at"`
}

// Name returns a display name for the source
func (s Source) Name() string {
	if s.Domain != "" {
		return s.Domain
	}
	return s.URL
}

// ClaimWithSources bundles a claim with its supporting sources
type ClaimWithSources struct {
	Claim   Claim    `json:"claim"`
	Sources []Source `json:"sources"`
}

// MeanQuality returns the average source quality, or 0 when there are no sources
func (c ClaimWithSources) MeanQuality() float64 {
	if len(c.Sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Sources {
		sum += s.Quality
	}
	return sum / float64(len(c.Sources))
}
