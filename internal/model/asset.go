package model

import (
	"strings"
	"time"
)

// MediaAsset is a candidate image for an entity.
// At most one asset per entity has Selected set at any time.
type MediaAsset struct {
	ID            string        `json:"id"`
	Entity        EntityRef     `json:"entity"`
	SourceURL     string        `json:"source_url"`
	StorageURL    string        `json:"storage_url,omitempty"` // Set after mirroring to durable storage
	AltText       string        `json:"alt_text,omitempty"`
	MatchScore    float64       `json:"match_score"`   // Semantic match to the entity, [0,100]
	QualityScore  float64       `json:"quality_score"` // Image quality, [0,100]
	CopyrightRisk CopyrightRisk `json:"copyright_risk"`
	License       LicenseStatus `json:"license_status"`
	Status        AssetStatus   `json:"status"`
	RejectReason  string        `json:"reject_reason,omitempty"`
	Selected      bool          `json:"selected"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// URL returns the mirrored URL when available, otherwise the source URL
func (a MediaAsset) URL() string {
	if a.StorageURL != "" {
		return a.StorageURL
	}
	return a.SourceURL
}

// AssetStatus is the lifecycle state of a media asset
type AssetStatus string

const (
	AssetCandidate AssetStatus = "candidate" // Fetched, not yet scored
	AssetScored    AssetStatus = "scored"    // Verified by the inference step
	AssetRejected  AssetStatus = "rejected"  // Human override
)

// CopyrightRisk estimates the copyright exposure of using an asset
type CopyrightRisk string

const (
	CopyrightLow    CopyrightRisk = "low"
	CopyrightMedium CopyrightRisk = "medium"
	CopyrightHigh   CopyrightRisk = "high"
)

// ParseCopyrightRisk normalizes free text; anything unrecognized is medium
func ParseCopyrightRisk(raw string) CopyrightRisk {
	switch CopyrightRisk(strings.ToLower(strings.TrimSpace(raw))) {
	case CopyrightLow:
		return CopyrightLow
	case CopyrightHigh:
		return CopyrightHigh
	default:
		return CopyrightMedium
	}
}

// LicenseStatus is the licensing verdict for an asset
type LicenseStatus string

const (
	LicenseSafe     LicenseStatus = "safe"
	LicenseUnknown  LicenseStatus = "unknown"
	LicenseRejected LicenseStatus = "rejected"
)

// ParseLicenseStatus normalizes free text; anything unrecognized is unknown
func ParseLicenseStatus(raw string) LicenseStatus {
	switch LicenseStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case LicenseSafe:
		return LicenseSafe
	case LicenseRejected:
		return LicenseRejected
	default:
		return LicenseUnknown
	}
}

// AssetScores is the verdict written by the verification step
type AssetScores struct {
	MatchScore    float64       `json:"match_score"`
	QualityScore  float64       `json:"quality_score"`
	CopyrightRisk CopyrightRisk `json:"copyright_risk"`
	License       LicenseStatus `json:"license_status"`
}
