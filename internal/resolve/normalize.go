package resolve

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/provenance/internal/model"
)

// listSep joins element keys of list values. It cannot appear in normalized text.
const listSep = "\x1f"

var folder = cases.Fold()

// value is a claim value prepared for comparison
type value struct {
	key     string // comparison key, equal for equivalent values
	display string // raw value as shown to readers
}

// normalizeClaim derives the comparison key and display value of a claim.
// A missing or malformed structured value falls back to the claim text.
func normalizeClaim(c model.Claim) value {
	if items, ok := decodeValue(c.Value); ok {
		keys := make([]string, len(items))
		for i, item := range items {
			keys[i] = normalizeScalar(c.Type, item)
		}
		return value{key: strings.Join(keys, listSep), display: strings.Join(items, ", ")}
	}
	display := collapseSpace(c.Text)
	return value{key: normalizeScalar(c.Type, display), display: display}
}

// decodeValue flattens a structured value into display strings. It accepts a
// string, a number, or an ordered list of strings and numbers.
func decodeValue(raw json.RawMessage) ([]string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}

	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return nil, false
		}
		items := make([]string, 0, len(list))
		for _, el := range list {
			s, ok := decodeScalar(el)
			if !ok {
				return nil, false
			}
			items = append(items, s)
		}
		return items, true
	}

	s, ok := decodeScalar(raw)
	if !ok {
		return nil, false
	}
	return []string{s}, true
}

func decodeScalar(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = collapseSpace(s)
		return s, s != ""
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

// normalizeScalar builds the comparison key of one value
func normalizeScalar(predicate model.ClaimType, s string) string {
	s = collapseSpace(norm.NFKC.String(s))

	if predicate == model.ClaimTypeFoundedYear {
		if d, ok := canonicalDate(s); ok {
			return d[:4]
		}
		if y := yearPattern.FindAllString(s, 2); len(y) == 1 {
			return y[0]
		}
	}
	// Any value that is wholly a date compares by its canonical form
	if d, ok := canonicalDate(s); ok {
		return d
	}

	s = folder.String(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "."))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	yearPattern   = regexp.MustCompile(`\b(1[0-9]{3}|20[0-9]{2})\b`)
)

type dateLayout struct {
	layout string
	format string // canonical output precision
}

var dateLayouts = []dateLayout{
	{"2006-01-02", "2006-01-02"},
	{"2006-01", "2006-01"},
	{"2006", "2006"},
	{"January 2, 2006", "2006-01-02"},
	{"January 2 2006", "2006-01-02"},
	{"2 January 2006", "2006-01-02"},
	{"2 January, 2006", "2006-01-02"},
	{"Jan 2, 2006", "2006-01-02"},
	{"Jan 2 2006", "2006-01-02"},
	{"2 Jan 2006", "2006-01-02"},
	{"January 2006", "2006-01"},
	{"January, 2006", "2006-01"},
	{"Jan 2006", "2006-01"},
	{"02/01/2006", "2006-01-02"},
	{"2/1/2006", "2006-01-02"},
	{"2006/01/02", "2006-01-02"},
	{"02.01.2006", "2006-01-02"},
}

// canonicalDate renders a date as ISO-8601 at the precision it was written.
// Slash dates are read day first.
func canonicalDate(s string) (string, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.Replace(s, "Sept ", "Sep ", 1)

	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		return t.Format(l.format), true
	}
	return "", false
}
