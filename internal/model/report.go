package model

import "time"

// EntityReport summarizes how well an entity's knowledge is supported.
// It is diagnostic only and never changes resolution or selection.
type EntityReport struct {
	EntityID    string    `json:"entity_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Facts    FactCounts    `json:"facts"`
	Sources  SourceCounts  `json:"sources"`
	Assets   AssetCounts   `json:"assets"`
	Selected *MediaAsset   `json:"selected_asset,omitempty"`
	Score    Score         `json:"score"`
}

// FactCounts counts resolved facts per variant
type FactCounts struct {
	Verified    int `json:"verified"`
	Unverified  int `json:"unverified"` // Valid but below the verification threshold, plus UnverifiedFact
	Conflicting int `json:"conflicting"`
	Claims      int `json:"claims"`
}

// SourceCounts counts sources by authority tier and freshness
type SourceCounts struct {
	Total       int     `json:"total"`
	Primary     int     `json:"primary"`
	Secondary   int     `json:"secondary"`
	Tertiary    int     `json:"tertiary"`
	Unknown     int     `json:"unknown"`
	Domains     int     `json:"distinct_domains"`
	MeanQuality float64 `json:"mean_quality"`
}

// AssetCounts counts media candidates by state
type AssetCounts struct {
	Total    int `json:"total"`
	Scored   int `json:"scored"`
	Eligible int `json:"eligible"`
	Rejected int `json:"rejected"`
}

// Score represents the transparent coverage breakdown
type Score struct {
	Index      int      `json:"index"`      // Overall support index (0-100)
	Confidence string   `json:"confidence"` // low, medium, high
	Conflict   bool     `json:"conflict"`   // Whether any predicate is conflicting
	Signals    []Signal `json:"signals"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"` // Formula inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalVerifiedCoverage      SignalType = "verified_coverage"      // Verified facts among resolved predicates
	SignalAuthorityDistribution SignalType = "authority_distribution" // Authority tier balance
	SignalConflict              SignalType = "conflict"               // Competing values
	SignalSingleSource          SignalType = "single_source"          // Facts resting on one domain
	SignalLowQuality            SignalType = "low_quality_sources"    // Mean source quality below par
	SignalNoSelectedAsset       SignalType = "no_selected_asset"      // No image promoted
	SignalAssetBacklog          SignalType = "asset_backlog"          // Unscored candidates waiting
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
