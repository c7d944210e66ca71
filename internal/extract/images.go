package extract

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// minImageSide is the smallest declared width or height kept as a candidate
const minImageSide = 120

// ImageCandidate is an image referenced by a page
type ImageCandidate struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Origin string `json:"origin"` // img, srcset, og:image
}

// ImageExtractor finds candidate images in HTML
type ImageExtractor struct{}

// NewImageExtractor creates a new image extractor
func NewImageExtractor() *ImageExtractor {
	return &ImageExtractor{}
}

// Extract returns the images of a page, resolved against sourceURL.
// Icons, tracking pixels and inline data URIs are skipped.
func (e *ImageExtractor) Extract(htmlContent string, sourceURL string) ([]ImageCandidate, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}

	var images []ImageCandidate
	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if prop := attr(n, "property"); prop == "og:image" || attr(n, "name") == "twitter:image" {
					if u := resolveURL(baseURL, attr(n, "content")); u != "" {
						images = append(images, ImageCandidate{URL: u, Origin: "og:image"})
					}
				}
			case "img":
				if c, ok := imgCandidate(baseURL, n); ok {
					images = append(images, c)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return dedupeImages(images), nil
}

func imgCandidate(base *url.URL, n *html.Node) (ImageCandidate, bool) {
	c := ImageCandidate{
		Alt:    strings.TrimSpace(attr(n, "alt")),
		Width:  atoiAttr(n, "width"),
		Height: atoiAttr(n, "height"),
		Origin: "img",
	}
	if (c.Width > 0 && c.Width < minImageSide) || (c.Height > 0 && c.Height < minImageSide) {
		return c, false
	}

	// Prefer the widest srcset entry, then lazy-load attributes, then src
	if best := widestSrcset(attr(n, "srcset")); best != "" {
		c.URL = resolveURL(base, best)
		c.Origin = "srcset"
	}
	for _, key := range []string{"data-src", "data-original", "src"} {
		if c.URL != "" {
			break
		}
		c.URL = resolveURL(base, attr(n, key))
	}

	if c.URL == "" || looksDecorative(c.URL) {
		return c, false
	}
	return c, true
}

// widestSrcset returns the URL with the largest width descriptor
func widestSrcset(srcset string) string {
	best, bestWidth := "", -1
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			width, _ = strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		}
		if width > bestWidth {
			best, bestWidth = fields[0], width
		}
	}
	return best
}

func looksDecorative(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if strings.HasSuffix(path.Ext(strings.SplitN(lower, "?", 2)[0]), "svg") {
		return true
	}
	for _, marker := range []string{"sprite", "favicon", "/icons/", "icon-", "pixel", "spacer", "logo"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// resolveURL resolves a relative URL against a base URL
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	// Skip javascript: and inline data
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "data:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)

	// Only keep http/https URLs
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func atoiAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(attr(n, key)), "px"))
	if err != nil {
		return 0
	}
	return v
}

// dedupeImages removes duplicate image URLs, keeping the first occurrence
func dedupeImages(images []ImageCandidate) []ImageCandidate {
	seen := make(map[string]bool)
	var unique []ImageCandidate

	for _, img := range images {
		if !seen[img.URL] {
			seen[img.URL] = true
			unique = append(unique, img)
		}
	}

	return unique
}
