// Package config loads runtime configuration from a YAML file and
// EVERMIND_-prefixed environment variables, environment winning.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	BrokerURL string `mapstructure:"broker_url"`
	HTTPAddr  string `mapstructure:"http_addr"`
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level"`

	// DelegateExplanations routes explanation triggers through the
	// feedback worker instead of answering them in the chat worker.
	// Defaults to true; the REPL always answers inline.
	DelegateExplanations bool `mapstructure:"delegate_explanations"`

	LLM      LLMConfig      `mapstructure:"llm"`
	Embedder EmbedderConfig `mapstructure:"embedder"`
	Store    StoreConfig    `mapstructure:"store"`
}

// LLMConfig selects and configures the text generation provider.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // "anthropic" | "openai"
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider string `mapstructure:"provider"` // "mock" | "openai" | "onnx"
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`

	// ONNX-only settings.
	ModelPath     string `mapstructure:"model_path"`
	TokenizerPath string `mapstructure:"tokenizer_path"`
	LibraryPath   string `mapstructure:"library_path"`
}

// StoreConfig selects the vector store backend and cache sizing.
type StoreConfig struct {
	Backend     string `mapstructure:"backend"` // "chromem" | "pgvector"
	PostgresURL string `mapstructure:"postgres_url"`

	// CacheEntries bounds the read-through key-value cache; zero
	// disables it.
	CacheEntries int64 `mapstructure:"cache_entries"`

	// CacheTTL bounds how stale a cached read can get. The cache also
	// remembers misses, so a record written by another process against
	// the same database can go unseen for up to one TTL; shorten it (or
	// set cache_entries to 0) when multiple workers share a database.
	CacheTTL string `mapstructure:"cache_ttl"`
}

// SharedStore reports whether the configured vector backend is shared
// across processes. chromem is process-local, so split worker deployments
// need pgvector; anything else runs the combined worker.
func (c *Config) SharedStore() bool {
	return c.Store.Backend == "pgvector"
}

// Load reads configuration from path (optional, "" skips the file) and
// the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVERMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("broker_url", "ws://localhost:8765/ws")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("delegate_explanations", true)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("embedder.provider", "mock")
	v.SetDefault("store.backend", "chromem")
	v.SetDefault("store.cache_entries", 10000)
	v.SetDefault("store.cache_ttl", "5m")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
