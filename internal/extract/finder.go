package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/provenance/internal/llm"
	"github.com/ppiankov/provenance/internal/model"
)

// Candidate is an unvalidated claim proposed by a Finder
type Candidate struct {
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Value      json.RawMessage `json:"value,omitempty"`
	Confidence float64         `json:"confidence"`
	Snippet    string          `json:"snippet"` // Evidence as quoted by the finder; located in the document later
}

// Finder proposes claim candidates for an entity from one document.
// Errors should wrap ErrInference or ErrUnparseable.
type Finder interface {
	Name() string
	Find(ctx context.Context, doc model.RawDocument, entity model.Entity) ([]Candidate, error)
}

const maxPromptContentRunes = 24000

const llmSystemPrompt = `You extract factual claims about one subject from a source document for a music archive.
Rules:
- Only use information stated in the document. Never add outside knowledge.
- Every claim needs a "snippet": an exact, contiguous copy of the document text that states it (at most 300 characters).
- "type" must be one of: %s.
- "value" is the normalized value when the claim has one: dates as ISO-8601 (YYYY, YYYY-MM or YYYY-MM-DD), names as written, lists as JSON arrays. Omit it otherwise.
- "confidence" is your certainty between 0 and 1 that the document asserts the claim about this subject.
Reply with JSON only: {"claims":[{"type":"...","text":"...","value":...,"confidence":0.0,"snippet":"..."}]}`

// LLMFinder asks the inference provider for candidates
type LLMFinder struct {
	client *llm.Client
}

// NewLLMFinder creates a finder backed by an inference client
func NewLLMFinder(client *llm.Client) *LLMFinder {
	return &LLMFinder{client: client}
}

func (f *LLMFinder) Name() string {
	return "llm:" + f.client.ProviderName()
}

type llmReply struct {
	Claims []Candidate `json:"claims"`
}

// Find prompts the provider and decodes its reply
func (f *LLMFinder) Find(ctx context.Context, doc model.RawDocument, entity model.Entity) ([]Candidate, error) {
	req := llm.CompletionRequest{
		System: fmt.Sprintf(llmSystemPrompt, claimTypeList()),
		Prompt: buildPrompt(doc, entity),
	}

	var reply llmReply
	if _, err := f.client.CompleteJSON(ctx, req, &reply); err != nil {
		if errors.Is(err, llm.ErrNoJSON) {
			return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return reply.Claims, nil
}

func claimTypeList() string {
	names := make([]string, len(model.ClaimTypes))
	for i, t := range model.ClaimTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func buildPrompt(doc model.RawDocument, entity model.Entity) string {
	content := doc.Content
	if utf8.RuneCountInString(content) > maxPromptContentRunes {
		content = string([]rune(content)[:maxPromptContentRunes])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s (%s)\n", entity.Name, entity.Kind)
	fmt.Fprintf(&b, "Source URL: %s\n\n", doc.URL)
	b.WriteString("Document:\n\"\"\"\n")
	b.WriteString(content)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}
