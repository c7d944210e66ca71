package adapters

import (
	"golang.org/x/net/html"

	"github.com/ppiankov/provenance/internal/extract"
)

// profileContainer locates the biography block of one site
type profileContainer struct {
	domain  string
	ids     []string
	classes []string
}

// ProfileAdapter extracts the biography block of music database and store
// profile pages. Pages without the block fall back to the generic text.
type ProfileAdapter struct {
	BaseAdapter
	sites   []profileContainer
	generic *GenericAdapter
}

// NewProfileAdapter creates an adapter for the known profile sites
func NewProfileAdapter() *ProfileAdapter {
	return &ProfileAdapter{
		sites: []profileContainer{
			{domain: "discogs.com", classes: []string{"profile"}, ids: []string{"profile"}},
			{domain: "bandcamp.com", classes: []string{"bio-text"}, ids: []string{"bio-text", "bio-container"}},
			{domain: "musicbrainz.org", classes: []string{"annotation-body", "wikipedia-extract-body"}},
		},
		generic: NewGenericAdapter(),
	}
}

// Name returns the adapter name
func (a *ProfileAdapter) Name() string {
	return "profile"
}

// CanHandle checks if the URL belongs to a known profile site
func (a *ProfileAdapter) CanHandle(rawURL string) bool {
	return a.site(rawURL) != nil
}

func (a *ProfileAdapter) site(rawURL string) *profileContainer {
	for i := range a.sites {
		if hostMatches(rawURL, a.sites[i].domain) {
			return &a.sites[i]
		}
	}
	return nil
}

// Text extracts the site's biography block
func (a *ProfileAdapter) Text(doc *html.Node, rawURL string) string {
	site := a.site(rawURL)
	if site == nil {
		return a.generic.Text(doc, rawURL)
	}
	block := a.FindFirst(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		id := a.GetAttribute(n, "id")
		for _, want := range site.ids {
			if id == want {
				return true
			}
		}
		for _, class := range site.classes {
			if a.HasClass(n, class) {
				return true
			}
		}
		return false
	})
	if block == nil {
		return a.generic.Text(doc, rawURL)
	}
	return extract.NodeText(block, a.generic.chrome)
}
