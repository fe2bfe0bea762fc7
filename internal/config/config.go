// Package config loads the chemed YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted by llm.provider and embedding.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// ValidLLMProviders lists the completion backends.
var ValidLLMProviders = []string{ProviderOpenAI, ProviderGemini, ProviderOllama}

// ValidEmbeddingProviders lists the embedding backends; "none" disables
// retrieval and grading.
var ValidEmbeddingProviders = []string{ProviderOpenAI, ProviderGemini, ProviderOllama, "none"}

// Config holds all chemed configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Topic     TopicConfig     `yaml:"topic"`
	Balancer  BalancerConfig  `yaml:"balancer"`
	Visualize VisualizeConfig `yaml:"visualize"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes"`
}

// LLMConfig configures the chat completion backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini, ollama
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbeddingConfig configures the embedding backend used for retrieval and grading.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // openai, gemini, ollama, none
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	TaskType string `yaml:"task_type"` // gemini only
}

// KnowledgeConfig configures the reference-note store.
type KnowledgeConfig struct {
	DatabasePath   string `yaml:"database_path"` // empty keeps passages in memory
	NotesDir       string `yaml:"notes_dir"`
	WatchNotes     bool   `yaml:"watch_notes"`
	EmbeddingsFile string `yaml:"embeddings_file"`
	TopN           int    `yaml:"top_n"`
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
}

// TopicConfig configures the chemistry topic filter.
type TopicConfig struct {
	KeywordsFile   string `yaml:"keywords_file"`
	WatchKeywords  bool   `yaml:"watch_keywords"`
	FormulaPattern string `yaml:"formula_pattern"`
	SymbolPattern  string `yaml:"symbol_pattern"`
}

// BalancerConfig bounds the equation search.
type BalancerConfig struct {
	MaxCoefficient  int    `yaml:"max_coefficient"`
	MaxSideLength   int    `yaml:"max_side_length"`
	CandidateBudget int    `yaml:"candidate_budget"` // 0 means unlimited
	Timeout         string `yaml:"timeout"`
}

// VisualizeConfig configures the structure and depiction services.
type VisualizeConfig struct {
	PubChemURL  string `yaml:"pubchem_url"`
	RDKitURL    string `yaml:"rdkit_url"`    // empty disables 2D rendering
	RDKitScript string `yaml:"rdkit_script"` // started as a subprocess when set
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ShutdownTimeout: "10s",
			MaxBodyBytes:    2 << 20,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-3.5-turbo",
			Temperature: 0.2,
			MaxTokens:   1000,
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-large",
		},
		Knowledge: KnowledgeConfig{
			DatabasePath: "data/knowledge.db",
			TopN:         3,
			ChunkSize:    500,
			ChunkOverlap: 50,
		},
		Topic: TopicConfig{
			WatchKeywords: true,
		},
		Balancer: BalancerConfig{
			MaxCoefficient: 10,
			MaxSideLength:  4,
			Timeout:        "2s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	// Provider keys only land on the sections that use that provider.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.Provider == ProviderOpenAI {
			c.LLM.APIKey = key
		}
		if c.Embedding.Provider == ProviderOpenAI {
			c.Embedding.APIKey = key
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.LLM.Provider == ProviderGemini {
			c.LLM.APIKey = key
		}
		if c.Embedding.Provider == ProviderGemini {
			c.Embedding.APIKey = key
		}
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" && c.LLM.Provider == ProviderOpenAI {
		c.LLM.Model = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		c.Embedding.Model = model
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		if c.LLM.Provider == ProviderOllama {
			c.LLM.BaseURL = url
		}
		if c.Embedding.Provider == ProviderOllama {
			c.Embedding.BaseURL = url
		}
	}

	if path := os.Getenv("CHEMED_KEYWORDS"); path != "" {
		c.Topic.KeywordsFile = path
	}
	if path := os.Getenv("CHEMED_DB"); path != "" {
		c.Knowledge.DatabasePath = path
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

// GetShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetBalanceTimeout returns the per-request balancer guard.
func (c *Config) GetBalanceTimeout() time.Duration {
	d, err := time.ParseDuration(c.Balancer.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// EmbeddingEnabled reports whether an embedding backend is configured.
func (c *Config) EmbeddingEnabled() bool {
	switch c.Embedding.Provider {
	case "", "none":
		return false
	case ProviderOllama:
		return true
	default:
		return c.Embedding.APIKey != ""
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if !contains(ValidLLMProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidLLMProviders)
	}
	if c.LLM.Provider != ProviderOllama && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured for %s (set OPENAI_API_KEY or GEMINI_API_KEY)", c.LLM.Provider)
	}
	if c.Embedding.Provider != "" && !contains(ValidEmbeddingProviders, c.Embedding.Provider) {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}
	if c.Balancer.MaxCoefficient < 1 || c.Balancer.MaxSideLength < 1 {
		return fmt.Errorf("balancer bounds must be positive (max_coefficient=%d, max_side_length=%d)",
			c.Balancer.MaxCoefficient, c.Balancer.MaxSideLength)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
