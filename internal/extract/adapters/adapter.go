// Package adapters picks the main content of a fetched page so that
// navigation, reference lists and sidebars never reach claim extraction.
package adapters

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/provenance/internal/validate"
)

// Adapter turns a parsed page of one kind of site into document text
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter can handle the given URL
	CanHandle(rawURL string) bool

	// Text returns the visible main text of the page
	Text(doc *html.Node, rawURL string) string
}

// Registry manages site adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{}
	registry.Register(NewWikipediaAdapter())
	registry.Register(NewProfileAdapter())
	registry.generic = NewGenericAdapter()
	return registry
}

// Register registers a new adapter; earlier registrations win
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the given URL, falling back to generic
func (r *Registry) FindAdapter(rawURL string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(rawURL) {
			return adapter
		}
	}
	return r.generic
}

// Text parses htmlContent and extracts its main text with the matching adapter
func (r *Registry) Text(htmlContent, rawURL string) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", err
	}
	adapter := r.FindAdapter(rawURL)
	return adapter.Text(doc, rawURL), adapter.Name(), nil
}

// BaseAdapter provides common node helpers for adapters
type BaseAdapter struct{}

// HasClass checks if a node has a specific CSS class
func (b *BaseAdapter) HasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range strings.Fields(b.GetAttribute(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// FindFirst finds the first node matching a predicate, depth first
func (b *BaseAdapter) FindFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}

// hostMatches reports whether rawURL's host is domain or one of its subdomains
func hostMatches(rawURL, domain string) bool {
	host := validate.Domain(rawURL)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
