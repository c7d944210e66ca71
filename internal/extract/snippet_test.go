package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const tresorText = "Tresor opened in March 1991 in the vaults of a former department store.\n" +
	"Dimitri Hegemann — the club's founder — described it as “a bunker for   the future”.\n" +
	"Die Klubnacht dauert bis zum Morgengrauen."

func TestLocateSnippet(t *testing.T) {
	tests := []struct {
		desc    string
		snippet string
		want    string
		found   bool
	}{
		{"exact", "opened in March 1991", "opened in March 1991", true},
		{"whitespace differences", "a bunker for the future", "a bunker for   the future", true},
		{"case differences", "TRESOR OPENED in march", "Tresor opened in March", true},
		{"quote and dash style", `Hegemann - the club's founder - described it as "a bunker`, "Hegemann — the club's founder — described it as “a bunker", true},
		{"wrapping quotes and ellipsis", `"...vaults of a former department store..."`, "vaults of a former department store", true},
		{"across lines", "department store. Dimitri Hegemann", "department store.\nDimitri Hegemann", true},
		{"non-ascii", "dauert bis zum Morgengrauen", "dauert bis zum Morgengrauen", true},
		{"regex metacharacters", "opened (in) March 1991", "", false},
		{"not in document", "Tresor closed in 2005", "", false},
		{"empty", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, ok := locateSnippet(tresorText, tt.snippet, 500)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if ok && !strings.Contains(tresorText, got) {
				t.Errorf("excerpt %q is not a substring of the document", got)
			}
		})
	}
}

func TestLocateSnippet_TruncatesOnRuneBoundary(t *testing.T) {
	content := "Ünter den Linden: " + strings.Repeat("ä", 40)

	got, ok := locateSnippet(content, content, 20)
	if !ok {
		t.Fatal("Expected snippet to be found")
	}
	if utf8.RuneCountInString(got) > 20 {
		t.Errorf("Expected at most 20 runes, got %d", utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Error("Expected valid UTF-8 after truncation")
	}
	if !strings.HasPrefix(content, got) {
		t.Errorf("Expected a verbatim prefix, got %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
	if got := truncateRunes("ab cd", 3); got != "ab" {
		t.Errorf("Expected trailing space trimmed, got %q", got)
	}
	if got := truncateRunes("日本語テキスト", 3); got != "日本語" {
		t.Errorf("Expected 3 runes, got %q", got)
	}
}
