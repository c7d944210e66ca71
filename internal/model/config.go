package model

import "time"

// Config is the complete runtime configuration
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Extraction  ExtractionConfig  `yaml:"extraction" mapstructure:"extraction"`
	Resolver    ResolverConfig    `yaml:"resolver" mapstructure:"resolver"`
	Selection   SelectionConfig   `yaml:"selection" mapstructure:"selection"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Authority   AuthorityConfig   `yaml:"authority" mapstructure:"authority"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // memory, postgres
	Path     string `yaml:"path" mapstructure:"path"`     // Memory snapshot file, empty keeps nothing between runs
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// CacheConfig configures the fact-result cache
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir      string        `yaml:"dir" mapstructure:"dir"`             // Disk layer, empty disables it
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"` // Shared layer, empty disables it
}

// LLMConfig configures the inference provider
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, xai, anthropic, ollama, gemini
	Model       string        `yaml:"model" mapstructure:"model"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
}

// HTTPConfig configures outbound fetches and the API listener
type HTTPConfig struct {
	Addr          string        `yaml:"addr" mapstructure:"addr"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// ExtractionConfig configures the claim extractor and batch runner
type ExtractionConfig struct {
	Finder          string        `yaml:"finder" mapstructure:"finder"` // llm, keyword
	MinContentChars int           `yaml:"min_content_chars" mapstructure:"min_content_chars"`
	MaxSnippetChars int           `yaml:"max_snippet_chars" mapstructure:"max_snippet_chars"`
	Delay           time.Duration `yaml:"delay" mapstructure:"delay"` // Pause between inference calls in a batch
	CheckpointPath  string        `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
}

// ResolverConfig configures fact resolution
type ResolverConfig struct {
	VerifyThreshold float64 `yaml:"verify_threshold" mapstructure:"verify_threshold"`
	Aggregation     string  `yaml:"aggregation" mapstructure:"aggregation"` // representative, max, noisy_or
}

// SelectionConfig configures asset selection
type SelectionConfig struct {
	MatchWeight   float64 `yaml:"match_weight" mapstructure:"match_weight"`
	QualityWeight float64 `yaml:"quality_weight" mapstructure:"quality_weight"`
	MinMatchScore float64 `yaml:"min_match_score" mapstructure:"min_match_score"`
	Mirror        bool    `yaml:"mirror" mapstructure:"mirror"`
}

// StorageConfig configures durable media storage
type StorageConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // local, s3
	LocalDir string `yaml:"local_dir" mapstructure:"local_dir"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Region   string `yaml:"region" mapstructure:"region"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"` // S3-compatible endpoint override

	// Static credentials; empty uses the default AWS chain
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
}

// AuthorityConfig configures source authority classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	PathPatterns     []PathPattern     `yaml:"path_patterns" mapstructure:"path_patterns"`
	DomainMap        map[string]string `yaml:"domain_map" mapstructure:"domain_map"`
	TierQuality      TierQuality       `yaml:"tier_quality" mapstructure:"tier_quality"`
}

// PathPattern maps URL paths to a tier
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// TierQuality is the initial source quality per authority tier
type TierQuality struct {
	Primary   float64 `yaml:"primary" mapstructure:"primary"`
	Secondary float64 `yaml:"secondary" mapstructure:"secondary"`
	Tertiary  float64 `yaml:"tertiary" mapstructure:"tertiary"`
	Unknown   float64 `yaml:"unknown" mapstructure:"unknown"`
}

// For returns the configured quality of a tier
func (q TierQuality) For(t AuthorityTier) float64 {
	switch t {
	case TierPrimary:
		return q.Primary
	case TierSecondary:
		return q.Secondary
	case TierTertiary:
		return q.Tertiary
	default:
		return q.Unknown
	}
}

// ConcurrencyConfig configures worker pools and rate limits
type ConcurrencyConfig struct {
	Workers      int     `yaml:"workers" mapstructure:"workers"`
	PerDomainRPS float64 `yaml:"per_domain_rps" mapstructure:"per_domain_rps"`
	Burst        int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // dev, prod
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:   "memory",
			Path:     ".provenance/store.json",
			MaxConns: 10,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     15 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     60 * time.Second,
			MaxTokens:   2000,
			Temperature: 0,
		},
		HTTP: HTTPConfig{
			Addr:          ":8080",
			Timeout:       15 * time.Second,
			UserAgent:     "provenance/0.1 (+https://github.com/ppiankov/provenance)",
			MaxBodyBytes:  5 << 20,
			RespectRobots: true,
		},
		Extraction: ExtractionConfig{
			Finder:          "llm",
			MinContentChars: 200,
			MaxSnippetChars: 500,
			Delay:           1500 * time.Millisecond,
			CheckpointPath:  ".provenance/extract-checkpoint.json",
		},
		Resolver: ResolverConfig{
			VerifyThreshold: 0.7,
			Aggregation:     "representative",
		},
		Selection: SelectionConfig{
			MatchWeight:   0.6,
			QualityWeight: 0.4,
			MinMatchScore: 60,
			Mirror:        true,
		},
		Storage: StorageConfig{
			Driver:   "local",
			LocalDir: ".provenance/media",
			Prefix:   "media",
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"musicbrainz.org",
				"bandcamp.com",
				"ra.co",
			},
			SecondaryDomains: []string{
				"wikipedia.org",
				"discogs.com",
				"residentadvisor.net",
				"mixmag.net",
				"factmag.com",
				"djmag.com",
				"pitchfork.com",
				"theguardian.com",
				"bbc.co.uk",
				"thewire.co.uk",
				"groove.de",
			},
			PathPatterns: []PathPattern{
				{Pattern: `^/(press|about|biography|bio)(/|$)`, Tier: "primary"},
				{Pattern: `/interviews?/`, Tier: "secondary"},
			},
			DomainMap: map[string]string{},
			TierQuality: TierQuality{
				Primary:   0.9,
				Secondary: 0.75,
				Tertiary:  0.45,
				Unknown:   0.3,
			},
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			PerDomainRPS: 1,
			Burst:        2,
		},
		Log: LogConfig{
			Mode: "dev",
		},
	}
}
