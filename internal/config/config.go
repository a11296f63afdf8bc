package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

// MaxRetrievalResults is the largest num_results a request may ask for.
const MaxRetrievalResults = 20

type Config struct {
	Port         int                `json:"port"`
	LogConfig    logger.LogConfig   `json:"log_config"`
	RateLimitMs  int                `json:"rate_limit_ms"`
	Database     DatabaseConfig     `json:"database"`
	FileStore    FileStoreConfig    `json:"file_store"`
	Chunker      ChunkerConfig      `json:"chunker"`
	Index        IndexConfig        `json:"index"`
	Conversation ConversationConfig `json:"conversation"`
	Embedding    EmbeddingConfig    `json:"embedding"`
	Generation   GenerationConfig   `json:"generation"`
	Retrieval    RetrievalConfig    `json:"retrieval"`
	Context      ContextConfig      `json:"context"`
	Highlight    HighlightConfig    `json:"highlight"`
	Ingest       IngestConfig       `json:"ingest"`
	Jobs         JobsConfig         `json:"jobs"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ChunkerConfig struct {
	ChunkSize int `json:"chunk_size"`
	Overlap   int `json:"overlap"`
	MinWords  int `json:"min_words"`
}

type IndexConfig struct {
	// Source is "snapshot" (filestore artifacts) or "pgvector".
	Source string `json:"source"`
	Prefix string `json:"prefix"`
}

type ConversationConfig struct {
	// Store is "memory", "sql" or "redis".
	Store string      `json:"store"`
	Redis RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

type ProviderConfig struct {
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	Model     string                 `json:"model"`
	APIKeyEnv string                 `json:"api_key_env"`
	Data      map[string]interface{} `json:"data"`
}

type EmbeddingConfig struct {
	Providers []ProviderConfig `json:"providers"`
	CacheSize int              `json:"cache_size"`
	CacheTTL  int              `json:"cache_ttl"`
	DBCache   bool             `json:"db_cache"`
}

type GenerationConfig struct {
	Providers       []ProviderConfig `json:"providers"`
	DefaultProvider string           `json:"default_provider"`
	Auto            []string         `json:"auto"`
	Timeout         int              `json:"timeout"`
	MaxRetries      int              `json:"max_retries"`
	BackoffMs       int              `json:"backoff_ms"`
	Temperature     *float32         `json:"temperature"`
}

type RetrievalConfig struct {
	DefaultResults int `json:"default_results"`
	MaxResults     int `json:"max_results"`
	HistoryTurns   int `json:"history_turns"`
}

type ContextConfig struct {
	MaxTurns        int `json:"max_turns"`
	MaxMessageChars int `json:"max_message_chars"`
}

type HighlightConfig struct {
	MinQuoteChars int     `json:"min_quote_chars"`
	MaxQuotes     int     `json:"max_quotes"`
	Threshold     float64 `json:"threshold"`
	Matcher       string  `json:"matcher"`
}

type IngestConfig struct {
	Concurrency       int     `json:"concurrency"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type JobsConfig struct {
	IndexReload              string `json:"index_reload"`
	EmbeddingCacheCleanup    string `json:"embedding_cache_cleanup"`
	EmbeddingCacheMaxAgeDays int    `json:"embedding_cache_max_age_days"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes a config body. YAML input is normalised to JSON first so a
// single set of json tags drives both formats.
func Parse(raw []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var tree interface{}
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
		data, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("normalize yaml config: %w", err)
		}
		raw = data
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.RateLimitMs < 0 {
		return fmt.Errorf("rate_limit_ms must be >= 0")
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 250
	}
	if cfg.Chunker.Overlap == 0 && cfg.Chunker.ChunkSize > 50 {
		cfg.Chunker.Overlap = 50
	}
	if cfg.Chunker.MinWords == 0 {
		cfg.Chunker.MinWords = 10
	}
	if cfg.Chunker.Overlap < 0 || cfg.Chunker.Overlap >= cfg.Chunker.ChunkSize {
		return fmt.Errorf("chunker.overlap must be in [0, chunk_size)")
	}
	if cfg.Chunker.MinWords > cfg.Chunker.ChunkSize {
		return fmt.Errorf("chunker.min_words must not exceed chunk_size")
	}

	if cfg.Index.Source == "" {
		cfg.Index.Source = "snapshot"
	}
	if cfg.Index.Prefix == "" {
		cfg.Index.Prefix = "index"
	}
	switch cfg.Index.Source {
	case "snapshot":
		if cfg.FileStore.Type == "" {
			cfg.FileStore.Type = "local"
		}
		if cfg.FileStore.Data == nil && cfg.FileStore.Type == "local" {
			cfg.FileStore.Data = map[string]interface{}{"dir": "./data"}
		}
	case "pgvector":
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("index.source pgvector requires database.driver postgres")
		}
	default:
		return fmt.Errorf("index.source must be snapshot or pgvector")
	}

	if cfg.Conversation.Store == "" {
		cfg.Conversation.Store = "memory"
	}
	switch cfg.Conversation.Store {
	case "memory":
	case "sql":
		if cfg.Database.Driver == "" {
			return fmt.Errorf("conversation.store sql requires database.driver")
		}
	case "redis":
		if cfg.Conversation.Redis.Addr == "" {
			return fmt.Errorf("conversation.redis.addr is required for redis store")
		}
		if cfg.Conversation.Redis.KeyPrefix == "" {
			cfg.Conversation.Redis.KeyPrefix = "groundqa:conv:"
		}
	default:
		return fmt.Errorf("conversation.store must be memory, sql or redis")
	}

	switch cfg.Database.Driver {
	case "":
	case "sqlite":
		if cfg.Database.Path == "" && cfg.Database.DSN == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if cfg.Database.DSN == "" && cfg.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for postgres")
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}
	if cfg.Embedding.DBCache && cfg.Database.Driver != "postgres" {
		return fmt.Errorf("embedding.db_cache requires database.driver postgres")
	}

	if len(cfg.Embedding.Providers) == 0 {
		return fmt.Errorf("embedding.providers is required")
	}
	if err := resolveProviders(cfg.Embedding.Providers); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = 3600
	}

	if len(cfg.Generation.Providers) == 0 {
		return fmt.Errorf("generation.providers is required")
	}
	if err := resolveProviders(cfg.Generation.Providers); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if cfg.Generation.DefaultProvider == "" {
		cfg.Generation.DefaultProvider = cfg.Generation.Providers[0].Name
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 2
	}
	if cfg.Generation.BackoffMs == 0 {
		cfg.Generation.BackoffMs = 500
	}
	if cfg.Generation.Temperature == nil {
		t := float32(0.2)
		cfg.Generation.Temperature = &t
	}

	if cfg.Retrieval.DefaultResults == 0 {
		cfg.Retrieval.DefaultResults = 10
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = 20
	}
	if cfg.Retrieval.MaxResults < 1 || cfg.Retrieval.MaxResults > MaxRetrievalResults {
		return fmt.Errorf("retrieval.max_results must be in [1, %d]", MaxRetrievalResults)
	}
	if cfg.Retrieval.DefaultResults < 1 || cfg.Retrieval.DefaultResults > cfg.Retrieval.MaxResults {
		return fmt.Errorf("retrieval.default_results must be in [1, max_results]")
	}
	if cfg.Retrieval.HistoryTurns == 0 {
		cfg.Retrieval.HistoryTurns = 1
	}
	if cfg.Retrieval.HistoryTurns < 0 {
		return fmt.Errorf("retrieval.history_turns must be >= 0")
	}

	if cfg.Context.MaxTurns == 0 {
		cfg.Context.MaxTurns = 10
	}
	if cfg.Context.MaxMessageChars == 0 {
		cfg.Context.MaxMessageChars = 1000
	}
	if cfg.Context.MaxTurns < 0 || cfg.Context.MaxMessageChars < 0 {
		return fmt.Errorf("context.max_turns and context.max_message_chars must be positive")
	}

	if cfg.Highlight.MinQuoteChars == 0 {
		cfg.Highlight.MinQuoteChars = 10
	}
	if cfg.Highlight.MaxQuotes == 0 {
		cfg.Highlight.MaxQuotes = 5
	}
	if cfg.Highlight.Threshold == 0 {
		cfg.Highlight.Threshold = 0.8
	}
	if cfg.Highlight.MinQuoteChars < 0 || cfg.Highlight.MaxQuotes < 0 {
		return fmt.Errorf("highlight.min_quote_chars and highlight.max_quotes must be positive")
	}
	if cfg.Highlight.Threshold < 0 || cfg.Highlight.Threshold > 1 {
		return fmt.Errorf("highlight.threshold must be in [0, 1]")
	}
	if cfg.Highlight.Matcher == "" {
		cfg.Highlight.Matcher = "edit"
	}
	if cfg.Highlight.Matcher != "edit" && cfg.Highlight.Matcher != "overlap" {
		return fmt.Errorf("highlight.matcher must be edit or overlap")
	}

	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.Concurrency < 0 || cfg.Ingest.RequestsPerSecond < 0 {
		return fmt.Errorf("ingest.concurrency and ingest.requests_per_second must not be negative")
	}
	if cfg.Jobs.EmbeddingCacheMaxAgeDays == 0 {
		cfg.Jobs.EmbeddingCacheMaxAgeDays = 30
	}
	return nil
}

func resolveProviders(items []ProviderConfig) error {
	seen := make(map[string]bool, len(items))
	for i := range items {
		item := &items[i]
		if item.Type == "" {
			return fmt.Errorf("providers[%d].type is required", i)
		}
		if item.Name == "" {
			item.Name = item.Type
		}
		if seen[item.Name] {
			return fmt.Errorf("duplicate provider name: %s", item.Name)
		}
		seen[item.Name] = true
		if item.Data == nil {
			item.Data = map[string]interface{}{}
		}
		if item.APIKeyEnv != "" {
			if _, ok := item.Data["api_key"]; !ok {
				item.Data["api_key"] = os.Getenv(item.APIKeyEnv)
			}
		}
	}
	return nil
}
