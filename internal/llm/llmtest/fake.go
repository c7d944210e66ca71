// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/ppiankov/provenance/internal/llm"
)

// Reply is one scripted provider answer
type Reply struct {
	Text string
	Err  error
}

// Provider replays scripted replies in order; the last reply repeats.
// Requests are recorded for assertions.
type Provider struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []llm.CompletionRequest
	Respond  func(req llm.CompletionRequest) Reply // Overrides the script when set
}

// New creates a provider that answers with the given texts
func New(texts ...string) *Provider {
	p := &Provider{}
	for _, t := range texts {
		p.replies = append(p.replies, Reply{Text: t})
	}
	return p
}

// Failing creates a provider whose every call fails with err
func Failing(err error) *Provider {
	return &Provider{replies: []Reply{{Err: err}}}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) IsAvailable(ctx context.Context) bool { return true }

func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	var r Reply
	switch {
	case p.Respond != nil:
		r = p.Respond(req)
	case len(p.replies) == 0:
		r = Reply{Text: "{}"}
	case len(p.replies) == 1:
		r = p.replies[0]
	default:
		r = p.replies[0]
		p.replies = p.replies[1:]
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{Text: r.Text, Model: "fake-model", TokensUsed: len(r.Text) / 4}, nil
}

// Calls returns the number of requests served
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
