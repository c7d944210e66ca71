package extract

import (
	"context"
	"strings"

	"github.com/ppiankov/provenance/internal/model"
)

const keywordConfidence = 0.35

// KeywordFinder proposes biographical sentences that mention the entity and
// contain a biographical cue. It needs no inference provider.
type KeywordFinder struct {
	keywords []string
}

// NewKeywordFinder creates a keyword finder with the default cues
func NewKeywordFinder() *KeywordFinder {
	return &KeywordFinder{
		keywords: []string{
			"born", "founded", "formed", "established", "opened", "started",
			"released", "debut", "signed", "resident", "based in", "grew up",
			"moved to", "known as", "real name", "member of", "co-founded",
			"collaborat", "influenced", "produced", "closed",
		},
	}
}

func (f *KeywordFinder) Name() string {
	return "keyword"
}

// Find returns one bio_fact candidate per matching sentence
func (f *KeywordFinder) Find(ctx context.Context, doc model.RawDocument, entity model.Entity) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := strings.ToLower(strings.TrimSpace(entity.Name))
	var candidates []Candidate
	for _, sentence := range splitSentences(doc.Content) {
		lower := strings.ToLower(sentence)
		if name != "" && !strings.Contains(lower, name) {
			continue
		}
		for _, keyword := range f.keywords {
			if strings.Contains(lower, keyword) {
				candidates = append(candidates, Candidate{
					Type:       string(model.ClaimTypeBioFact),
					Text:       sentence,
					Confidence: keywordConfidence,
					Snippet:    sentence,
				})
				break // Only match once per sentence
			}
		}
	}

	return dedupeCandidates(candidates), nil
}

// dedupeCandidates removes candidates with the same type and text
func dedupeCandidates(candidates []Candidate) []Candidate {
	seen := make(map[string]bool)
	var unique []Candidate

	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c.Type)) + "\x00" + strings.ToLower(strings.Join(strings.Fields(c.Text), " "))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, c)
		}
	}

	return unique
}
