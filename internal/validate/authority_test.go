package validate

import (
	"testing"

	"github.com/ppiankov/provenance/internal/model"
)

type tierCase struct {
	url      string
	expected model.AuthorityTier
	desc     string
}

func runTierCases(t *testing.T, classifier *AuthorityClassifier, tests []tierCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_PrimaryDomains(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains:   []string{"musicbrainz.org", "bandcamp.com"},
		SecondaryDomains: []string{"wikipedia.org"},
	}

	runTierCases(t, NewAuthorityClassifier(config), []tierCase{
		{"https://musicbrainz.org/artist/0d1d3d1c", model.TierPrimary, "exact match"},
		{"https://www.musicbrainz.org/release/1", model.TierPrimary, "www subdomain"},
		{"https://surgeon.bandcamp.com/album/force-and-form", model.TierPrimary, "artist subdomain"},
		{"https://notbandcamp.com/album", model.TierTertiary, "suffix without dot boundary"},
	})
}

func TestAuthorityClassifier_SecondaryDomains(t *testing.T) {
	config := &model.AuthorityConfig{
		SecondaryDomains: []string{"wikipedia.org", "discogs.com"},
	}

	runTierCases(t, NewAuthorityClassifier(config), []tierCase{
		{"https://en.wikipedia.org/wiki/Underground_Resistance", model.TierSecondary, "Wikipedia language subdomain"},
		{"https://www.discogs.com/artist/1234-Jeff-Mills", model.TierSecondary, "Discogs with www"},
		{"https://DE.Wikipedia.org/wiki/Tresor", model.TierSecondary, "host is case-insensitive"},
	})
}

func TestAuthorityClassifier_PathPatterns(t *testing.T) {
	config := &model.AuthorityConfig{
		PathPatterns: []model.PathPattern{
			{Pattern: `^/(press|about|bio)(/|$)`, Tier: "primary"},
			{Pattern: `/interviews?/`, Tier: "secondary"},
			{Pattern: `([`, Tier: "primary"},
		},
	}

	runTierCases(t, NewAuthorityClassifier(config), []tierCase{
		{"https://planet-e.net/press/kit", model.TierPrimary, "press kit path"},
		{"https://example.com/about", model.TierPrimary, "about page"},
		{"https://example.net/interviews/robert-hood", model.TierSecondary, "interview path"},
		{"https://example.com/blog/post", model.TierTertiary, "no matching path pattern"},
	})
}

func TestAuthorityClassifier_TLDHeuristics(t *testing.T) {
	runTierCases(t, NewAuthorityClassifier(nil), []tierCase{
		{"https://loc.gov/item/archive", model.TierPrimary, ".gov is primary"},
		{"https://mit.edu/research", model.TierPrimary, ".edu is primary"},
		{"https://gold.ac.uk/music", model.TierPrimary, ".ac.uk is primary"},
	})
}

func TestAuthorityClassifier_DomainMap(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains: []string{"tresorberlin.com"},
		DomainMap: map[string]string{
			"tresorberlin.com": "secondary",
			"technoforum.net":  "tertiary",
		},
	}

	runTierCases(t, NewAuthorityClassifier(config), []tierCase{
		{"https://tresorberlin.com/history", model.TierSecondary, "domain map overrides domain lists"},
		{"https://technoforum.net/thread/1", model.TierTertiary, "explicit tertiary"},
	})
}

func TestAuthorityClassifier_TertiaryDefault(t *testing.T) {
	runTierCases(t, NewAuthorityClassifier(nil), []tierCase{
		{"https://randomsite.com/page", model.TierTertiary, "unknown domain"},
		{"https://blog.example.net/article", model.TierTertiary, "blog domain"},
		{"https://ravers-united.org/visit", model.TierTertiary, ".org without other signals"},
	})
}

func TestAuthorityClassifier_InvalidURLs(t *testing.T) {
	runTierCases(t, NewAuthorityClassifier(nil), []tierCase{
		{"not-a-url", model.TierUnknown, "no host"},
		{"://missing-scheme", model.TierUnknown, "malformed URL"},
		{"", model.TierUnknown, "empty URL"},
	})
}

func TestAuthorityClassifier_PortHandling(t *testing.T) {
	config := &model.AuthorityConfig{PrimaryDomains: []string{"ra.co"}}

	runTierCases(t, NewAuthorityClassifier(config), []tierCase{
		{"https://ra.co:443/dj/surgeon", model.TierPrimary, "standard port"},
		{"http://ra.co:8080/events", model.TierPrimary, "non-standard port"},
	})
}

func TestAuthorityClassifier_Quality(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains:   []string{"musicbrainz.org"},
		SecondaryDomains: []string{"discogs.com"},
		TierQuality:      model.TierQuality{Primary: 0.9, Secondary: 0.7, Tertiary: 0.4, Unknown: 0.2},
	}
	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected float64
	}{
		{"https://musicbrainz.org/artist/1", 0.9},
		{"https://www.discogs.com/label/1", 0.7},
		{"https://someblog.net/post", 0.4},
		{"", 0.2},
	}
	for _, tt := range tests {
		if got := classifier.Quality(tt.url); got != tt.expected {
			t.Errorf("Quality(%q) = %v, want %v", tt.url, got, tt.expected)
		}
	}
}

func TestDomain(t *testing.T) {
	tests := map[string]string{
		"https://www.Discogs.com/artist/1": "discogs.com",
		"https://en.wikipedia.org/wiki/X":  "en.wikipedia.org",
		"http://ra.co:8080/dj":             "ra.co",
		"::":                               "",
	}
	for in, want := range tests {
		if got := Domain(in); got != want {
			t.Errorf("Domain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseTierString(t *testing.T) {
	tests := []struct {
		input    string
		expected model.AuthorityTier
	}{
		{"primary", model.TierPrimary},
		{"Primary", model.TierPrimary},
		{"1", model.TierPrimary},
		{"secondary", model.TierSecondary},
		{"2", model.TierSecondary},
		{"tertiary", model.TierTertiary},
		{"3", model.TierTertiary},
		{"unknown", model.TierUnknown},
		{"", model.TierTertiary},
		{"bogus", model.TierTertiary},
	}

	for _, tt := range tests {
		if result := parseTierString(tt.input); result != tt.expected {
			t.Errorf("parseTierString(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestNewAuthorityClassifier_NilConfig(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	if classifier == nil {
		t.Fatal("Expected classifier to be created with default config")
	}
	if classifier.Classify("https://www.discogs.com/artist/1") != model.TierSecondary {
		t.Error("Expected default config to classify discogs as secondary")
	}
}
