package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/provenance/internal/logger"
)

const defaultTimeout = 60 * time.Second

// ErrDisabled is returned when no provider is configured
var ErrDisabled = errors.New("llm: inference disabled (no provider configured)")

// Client wraps a provider with per-call timeouts and logging.
// A Client without a provider is valid and reports ErrDisabled.
type Client struct {
	provider Provider
	timeout  time.Duration
	log      *logger.Logger
}

// NewClient creates a client for the configured provider
func NewClient(config Config, log *logger.Logger) (*Client, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return NewClientWithProvider(provider, config.timeout(defaultTimeout), log), nil
}

// NewClientWithProvider wraps an existing provider
func NewClientWithProvider(provider Provider, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{provider: provider, timeout: timeout, log: logger.OrNop(log)}
}

// IsEnabled reports whether a provider is configured
func (c *Client) IsEnabled() bool {
	return c != nil && c.provider != nil
}

// ProviderName returns the provider name, or "" when disabled
func (c *Client) ProviderName() string {
	if !c.IsEnabled() {
		return ""
	}
	return c.provider.Name()
}

// IsAvailable checks the provider's reachability
func (c *Client) IsAvailable(ctx context.Context) bool {
	return c.IsEnabled() && c.provider.IsAvailable(ctx)
}

// Complete runs one inference call bounded by the client timeout
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if !c.IsEnabled() {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		c.log.Warn("inference failed", "provider", c.provider.Name(), "error", err)
		return nil, err
	}
	c.log.Debug("inference complete",
		"provider", c.provider.Name(),
		"model", resp.Model,
		"tokens", resp.TokensUsed,
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// CompleteJSON runs Complete and decodes the reply's first JSON value into v.
// Decoding failures wrap ErrNoJSON.
func (c *Client) CompleteJSON(ctx context.Context, req CompletionRequest, v any) (*CompletionResponse, error) {
	req.JSON = true
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := DecodeJSON(resp.Text, v); err != nil {
		return resp, fmt.Errorf("decode %s reply: %w", c.provider.Name(), err)
	}
	return resp, nil
}
