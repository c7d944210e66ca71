package model

import "time"

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Official artist/label/venue pages, registries, archives
	TierSecondary AuthorityTier = 2 // Encyclopedias, music databases, reputable press
	TierTertiary  AuthorityTier = 3 // Blogs, forums, fan pages
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// LinkCheck is the outcome of checking a source URL for liveness and age
type LinkCheck struct {
	URL          string        `json:"url"`
	IsAccessible bool          `json:"is_accessible"`
	StatusCode   int           `json:"status_code,omitempty"`
	LastModified *time.Time    `json:"last_modified,omitempty"`
	Age          *int          `json:"age_days,omitempty"`
	IsStale      bool          `json:"is_stale"`      // > 1 year old
	IsVeryStale  bool          `json:"is_very_stale"` // > 3 years old
	IsDead       bool          `json:"is_dead"`       // 404, 410, or unreachable
	RedirectURL  string        `json:"redirect_url,omitempty"`
	Authority    AuthorityTier `json:"authority"`
	Error        string        `json:"error,omitempty"`
}
