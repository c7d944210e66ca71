package llm

import (
	"context"
	"time"
)

// Provider defines the interface for inference providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the raw reply text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and reachable
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single-turn prompt
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string // Overrides the configured model when set
	MaxTokens   int
	Temperature float64
	JSON        bool // Ask the provider for a JSON reply where supported
}

// CompletionResponse is the provider's reply
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "xai", "anthropic", "ollama", "gemini", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string // Custom endpoint (Ollama host, OpenAI-compatible gateways)

	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults with inference disabled
func DefaultConfig() Config {
	return Config{
		Timeout:   60 * time.Second,
		MaxTokens: 2000,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

func pickModel(reqModel, configModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if configModel != "" {
		return configModel
	}
	return fallback
}

func pickMaxTokens(reqTokens, configTokens int) int {
	if reqTokens > 0 {
		return reqTokens
	}
	if configTokens > 0 {
		return configTokens
	}
	return 1000
}
