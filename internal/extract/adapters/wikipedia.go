package adapters

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/provenance/internal/extract"
)

// WikipediaAdapter extracts the article body of Wikipedia pages. Infoboxes,
// navboxes, citation markers and edit links are dropped, and the text ends
// at the first trailing section such as References.
type WikipediaAdapter struct {
	BaseAdapter
	skipClasses      []string
	trailingSections map[string]bool
}

// NewWikipediaAdapter creates a new Wikipedia adapter
func NewWikipediaAdapter() *WikipediaAdapter {
	return &WikipediaAdapter{
		skipClasses: []string{
			"infobox", "navbox", "vertical-navbox", "sidebar", "reference",
			"reflist", "references", "mw-editsection", "hatnote", "thumb",
			"metadata", "mw-empty-elt", "noprint", "shortdescription",
		},
		trailingSections: map[string]bool{
			"references":      true,
			"notes":           true,
			"see also":        true,
			"external links":  true,
			"further reading": true,
			"bibliography":    true,
			"discography":     true,
		},
	}
}

// Name returns the adapter name
func (a *WikipediaAdapter) Name() string {
	return "wikipedia"
}

// CanHandle checks if this is a Wikipedia URL
func (a *WikipediaAdapter) CanHandle(rawURL string) bool {
	return hostMatches(rawURL, "wikipedia.org")
}

// Text extracts the article body
func (a *WikipediaAdapter) Text(doc *html.Node, rawURL string) string {
	content := a.FindFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "div" &&
			(a.HasClass(n, "mw-parser-output") || a.GetAttribute(n, "id") == "mw-content-text")
	})
	if content == nil {
		return NewGenericAdapter().Text(doc, rawURL)
	}

	ended := false
	return extract.NodeText(content, func(n *html.Node) bool {
		if ended {
			return true
		}
		if n.Type != html.ElementNode {
			return false
		}
		if n.Data == "h2" && a.trailingSections[a.headingText(n)] {
			ended = true
			return true
		}
		for _, class := range a.skipClasses {
			if a.HasClass(n, class) {
				return true
			}
		}
		return false
	})
}

// headingText is the lower-cased title of a section heading without its edit link
func (a *WikipediaAdapter) headingText(n *html.Node) string {
	text := extract.NodeText(n, func(c *html.Node) bool { return a.HasClass(c, "mw-editsection") })
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
