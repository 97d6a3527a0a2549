package model

import "time"

// Config is the complete sidefx configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	LLM          LLMConfig          `yaml:"llm"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
	Cache        CacheConfig        `yaml:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	FDA          FDAConfig          `yaml:"fda"`
	Output       OutputConfig       `yaml:"output"`
}

// HTTPConfig controls outbound HTTP requests
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty"`
	RespectRobots bool          `yaml:"respect_robots"`
}

// LLMConfig selects and configures the language model provider
type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model     string `yaml:"model"`
	APIKey    string `yaml:"-"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Timeout   int    `yaml:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens"`
}

// ExtractionMode selects how adverse effects are obtained
type ExtractionMode string

const (
	ModeAuto  ExtractionMode = "auto"  // LLM when configured, table parser as fallback
	ModeLLM   ExtractionMode = "llm"   // LLM only
	ModeTable ExtractionMode = "table" // Table parser only
)

// ExtractionConfig controls per-label extraction
type ExtractionConfig struct {
	Mode         ExtractionMode `yaml:"mode"`
	UseTableHint bool           `yaml:"use_table_hint"` // Send the parsed table along with the HTML
	UseFreeText  bool           `yaml:"use_free_text"`  // Fall back to adverse_reactions text when no table exists
}

// CacheConfig controls caching of LLM extractions
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// ConcurrencyConfig controls the batch worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers"`
}

// RateLimitingConfig applies to both FDA API and LLM calls
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// FDAConfig configures the openFDA label search client
type FDAConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
	Limit   int    `yaml:"limit"`
}

// OutputConfig controls the aggregate artifact
type OutputConfig struct {
	Format  string `yaml:"format"` // csv, json, xlsx, sqlite
	Path    string `yaml:"path"`
	NARep   string `yaml:"na_rep"` // Marker for missing CSV values
	Verbose bool   `yaml:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "sidefx/0.1 (+https://github.com/ppiankov/sidefx)",
			MaxBodyBytes:  50_000_000,
			RespectRobots: false,
		},
		LLM: LLMConfig{
			Provider:  "",
			Model:     "", // Provider default (gpt-4o-mini for openai)
			Timeout:   60,
			MaxTokens: 500,
		},
		Extraction: ExtractionConfig{
			Mode:         ModeAuto,
			UseTableHint: false,
			UseFreeText:  false,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".sidefx-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		FDA: FDAConfig{
			BaseURL: "https://api.fda.gov",
			Limit:   1000,
		},
		Output: OutputConfig{
			Format: "csv",
			Path:   "data/adverse_effects.csv",
			NARep:  "",
		},
	}
}
