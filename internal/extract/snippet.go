package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxSnippetInputRunes bounds the regular expression built for one snippet
const maxSnippetInputRunes = 2000

const (
	quoteClass = `["'\x{2018}\x{2019}\x{201C}\x{201D}\x{00AB}\x{00BB}]`
	dashClass  = `[-\x{2010}\x{2011}\x{2012}\x{2013}\x{2014}]`
)

// locateSnippet finds snippet in content, tolerating differences in
// whitespace, letter case and quote or dash style. It returns the matching
// excerpt of content verbatim, cut to at most maxRunes runes.
func locateSnippet(content, snippet string, maxRunes int) (string, bool) {
	snippet = trimSnippet(snippet)
	if snippet == "" || utf8.RuneCountInString(snippet) > maxSnippetInputRunes {
		return "", false
	}

	if i := strings.Index(content, snippet); i >= 0 {
		return truncateRunes(content[i:i+len(snippet)], maxRunes), true
	}

	re, err := regexp.Compile(snippetPattern(snippet))
	if err != nil {
		return "", false
	}
	loc := re.FindStringIndex(content)
	if loc == nil {
		return "", false
	}
	return truncateRunes(content[loc[0]:loc[1]], maxRunes), true
}

// trimSnippet strips wrapping quotes and ellipses that finders add around
// quoted evidence
func trimSnippet(s string) string {
	s = strings.TrimSpace(s)
	for {
		before := s
		s = strings.TrimSuffix(s, "...")
		s = strings.TrimPrefix(s, "...")
		s = strings.TrimFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || r == '…' || isQuote(r)
		})
		if s == before {
			return s
		}
	}
}

func snippetPattern(snippet string) string {
	var b strings.Builder
	b.WriteString("(?i)")
	for i, token := range strings.Fields(snippet) {
		if i > 0 {
			b.WriteString(`\s+`)
		}
		for _, r := range token {
			switch {
			case isQuote(r):
				b.WriteString(quoteClass)
			case isDash(r):
				b.WriteString(dashClass)
			default:
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
	}
	return b.String()
}

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '‘', '’', '“', '”', '«', '»':
		return true
	}
	return false
}

func isDash(r rune) bool {
	switch r {
	case '-', '‐', '‑', '‒', '–', '—':
		return true
	}
	return false
}

// truncateRunes cuts s to at most n runes, never splitting a rune
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return strings.TrimRightFunc(s[:i], unicode.IsSpace)
		}
		count++
	}
	return s
}
