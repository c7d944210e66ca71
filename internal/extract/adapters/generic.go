package adapters

import (
	"golang.org/x/net/html"

	"github.com/ppiankov/provenance/internal/extract"
)

// GenericAdapter is the fallback for unknown sites. It prefers the page's
// <main> or <article> element and drops page chrome.
type GenericAdapter struct {
	BaseAdapter
}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "generic"
}

// CanHandle always returns true (fallback adapter)
func (a *GenericAdapter) CanHandle(rawURL string) bool {
	return true
}

// Text extracts the main region's visible text, or the whole page's
func (a *GenericAdapter) Text(doc *html.Node, rawURL string) string {
	root := a.FindFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && (n.Data == "main" || n.Data == "article")
	})
	if root == nil {
		root = doc
	}
	return extract.NodeText(root, a.chrome)
}

func (a *GenericAdapter) chrome(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "nav", "header", "footer", "aside", "form", "button":
		return true
	}
	return a.GetAttribute(n, "aria-hidden") == "true" || a.GetAttribute(n, "role") == "navigation"
}
