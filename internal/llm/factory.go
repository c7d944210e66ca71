package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/provenance/internal/model"
)

const xaiBaseURL = "https://api.x.ai/v1"

// NewProvider creates a provider based on configuration.
// An empty provider name returns (nil, nil): inference is disabled.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "xai", "grok":
		if config.BaseURL == "" {
			config.BaseURL = xaiBaseURL
		}
		p, err := NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		p.name = "xai"
		p.defaultModel = "grok-2-latest"
		return p, nil

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(config)

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, xai, anthropic, ollama, gemini)", config.Provider)
	}
}

// ConfigFromModel converts model configuration into provider configuration.
// API keys come from the environment, never from config files.
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	cfg := Config{
		Provider:    llmCfg.Provider,
		Model:       llmCfg.Model,
		BaseURL:     llmCfg.BaseURL,
		Timeout:     llmCfg.Timeout,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
	cfg.APIKey = APIKeyFromEnv(cfg.Provider)
	if strings.EqualFold(cfg.Provider, "ollama") && cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	return cfg
}

// APIKeyFromEnv returns the API key for a provider from its environment variable
func APIKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "xai", "grok":
		return os.Getenv("XAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini", "google":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}
