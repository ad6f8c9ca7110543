// Package config loads CodeAtlas configuration from an optional YAML file
// with environment variable overrides. Secrets (database DSN, provider API
// keys, source host token) come from the environment only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the complete CodeAtlas configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Source    SourceConfig    `yaml:"source"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	LLM       LLMConfig       `yaml:"llm"`
	Describe  DescribeConfig  `yaml:"describe"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	// URL is the Postgres DSN. Environment only, never read from YAML.
	URL string `yaml:"-" envconfig:"DATABASE_URL"`

	MaxConns        int           `yaml:"max_conns" envconfig:"DB_MAX_CONNS"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" envconfig:"DB_CONNECT_TIMEOUT"`
	StatementTimout time.Duration `yaml:"statement_timeout" envconfig:"DB_STATEMENT_TIMEOUT"`
}

// SourceConfig configures the repository hosting provider.
type SourceConfig struct {
	// Token authenticates against the hosting API. Environment only.
	Token string `yaml:"-" envconfig:"GITHUB_TOKEN"`

	// BaseURL overrides the API endpoint for enterprise installs.
	BaseURL string `yaml:"base_url" envconfig:"GITHUB_BASE_URL"`

	// RequestsPerSecond caps outbound API calls.
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"SOURCE_RPS"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	APIKey     string        `yaml:"-" envconfig:"EMBEDDING_API_KEY"`
	BaseURL    string        `yaml:"base_url" envconfig:"EMBEDDING_BASE_URL"`
	Model      string        `yaml:"model" envconfig:"EMBEDDING_MODEL"`
	Dimensions int           `yaml:"dimensions" envconfig:"EMBEDDING_DIMENSIONS"`
	BatchSize  int           `yaml:"batch_size" envconfig:"EMBEDDING_BATCH_SIZE"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"EMBEDDING_TIMEOUT"`
}

// RerankConfig configures the reranking provider.
type RerankConfig struct {
	APIKey  string        `yaml:"-" envconfig:"RERANK_API_KEY"`
	BaseURL string        `yaml:"base_url" envconfig:"RERANK_BASE_URL"`
	Model   string        `yaml:"model" envconfig:"RERANK_MODEL"`
	Enabled bool          `yaml:"enabled" envconfig:"RERANK_ENABLED"`
	Timeout time.Duration `yaml:"timeout" envconfig:"RERANK_TIMEOUT"`
}

// LLMConfig configures the chat-completion provider used for contextual
// descriptions and query expansion.
type LLMConfig struct {
	APIKey  string        `yaml:"-" envconfig:"LLM_API_KEY"`
	BaseURL string        `yaml:"base_url" envconfig:"LLM_BASE_URL"`
	Model   string        `yaml:"model" envconfig:"LLM_MODEL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"LLM_TIMEOUT"`
}

// DescribeConfig configures contextual description generation.
type DescribeConfig struct {
	Enabled    bool `yaml:"enabled" envconfig:"DESCRIBE_ENABLED"`
	BatchSize  int  `yaml:"batch_size" envconfig:"DESCRIBE_BATCH_SIZE"`
	MaxRetries int  `yaml:"max_retries" envconfig:"DESCRIBE_MAX_RETRIES"`
}

// PipelineConfig tunes the indexation pipeline.
type PipelineConfig struct {
	FetchBatchSize  int           `yaml:"fetch_batch_size" envconfig:"PIPELINE_FETCH_BATCH"`
	EmbedBatchSize  int           `yaml:"embed_batch_size" envconfig:"PIPELINE_EMBED_BATCH"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay" envconfig:"PIPELINE_BATCH_DELAY"`
	StaleJobTimeout time.Duration `yaml:"stale_job_timeout" envconfig:"PIPELINE_STALE_TIMEOUT"`
	MaxFileSize     int64         `yaml:"max_file_size" envconfig:"PIPELINE_MAX_FILE_SIZE"`
}

// SearchConfig tunes hybrid retrieval.
type SearchConfig struct {
	// RRFConstant is the fusion smoothing parameter k. Default 60.
	RRFConstant int `yaml:"rrf_constant" envconfig:"SEARCH_RRF_CONSTANT"`

	// CandidatePool is the per-signal candidate count fed into fusion.
	CandidatePool int `yaml:"candidate_pool" envconfig:"SEARCH_CANDIDATE_POOL"`

	// LexicalWeight and VectorWeight bias fusion. 1.0 each is the
	// unweighted RRF formula; lowering one de-emphasizes that signal.
	LexicalWeight float64 `yaml:"lexical_weight" envconfig:"SEARCH_LEXICAL_WEIGHT"`
	VectorWeight  float64 `yaml:"vector_weight" envconfig:"SEARCH_VECTOR_WEIGHT"`

	// MaxResults is the default result limit.
	MaxResults int `yaml:"max_results" envconfig:"SEARCH_MAX_RESULTS"`

	// RerankThreshold is the minimum candidate count before reranking runs.
	RerankThreshold int `yaml:"rerank_threshold" envconfig:"SEARCH_RERANK_THRESHOLD"`
}

// ServerConfig configures the MCP server and logging.
type ServerConfig struct {
	Transport string `yaml:"transport" envconfig:"SERVER_TRANSPORT"`
	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFile   string `yaml:"log_file" envconfig:"LOG_FILE"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        8,
			ConnectTimeout:  10 * time.Second,
			StatementTimout: 30 * time.Second,
		},
		Source: SourceConfig{
			RequestsPerSecond: 10,
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.voyageai.com/v1",
			Model:      "voyage-code-3",
			Dimensions: 1024,
			BatchSize:  128,
			Timeout:    60 * time.Second,
		},
		Rerank: RerankConfig{
			BaseURL: "https://api.voyageai.com/v1",
			Model:   "rerank-2.5",
			Enabled: true,
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Describe: DescribeConfig{
			Enabled:    true,
			BatchSize:  12,
			MaxRetries: 2,
		},
		Pipeline: PipelineConfig{
			FetchBatchSize:  10,
			EmbedBatchSize:  50,
			InterBatchDelay: 200 * time.Millisecond,
			StaleJobTimeout: 30 * time.Minute,
			MaxFileSize:     1 << 20,
		},
		Search: SearchConfig{
			RRFConstant:     60,
			CandidatePool:   50,
			LexicalWeight:   1.0,
			VectorWeight:    1.0,
			MaxResults:      10,
			RerankThreshold: 3,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// Load builds the configuration in three layers: defaults, then an optional
// YAML file, then environment variables (highest precedence).
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		}
	}

	// Each section is processed on its own so the env names are exactly
	// ATLAS_<tag>: a single Process over Config would insert the struct
	// field name into the key (ATLAS_EMBEDDING_EMBEDDING_MODEL).
	for _, section := range []any{
		&cfg.Database, &cfg.Source, &cfg.Embedding, &cfg.Rerank,
		&cfg.LLM, &cfg.Describe, &cfg.Pipeline, &cfg.Search, &cfg.Server,
	} {
		if err := envconfig.Process("atlas", section); err != nil {
			return nil, fmt.Errorf("failed to process environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfigPath looks for codeatlas.yaml in the working directory,
// then under the user config dir.
func defaultConfigPath() string {
	if _, err := os.Stat("codeatlas.yaml"); err == nil {
		return "codeatlas.yaml"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "codeatlas", "config.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the final configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 128 {
		return fmt.Errorf("embedding.batch_size must be in (0, 128], got %d", c.Embedding.BatchSize)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.CandidatePool <= 0 {
		return fmt.Errorf("search.candidate_pool must be positive, got %d", c.Search.CandidatePool)
	}
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("search.lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}
	if c.Search.VectorWeight < 0 || c.Search.VectorWeight > 1 {
		return fmt.Errorf("search.vector_weight must be between 0 and 1, got %f", c.Search.VectorWeight)
	}
	if c.Search.LexicalWeight == 0 && c.Search.VectorWeight == 0 {
		return fmt.Errorf("search weights must not both be zero")
	}
	if c.Pipeline.FetchBatchSize <= 0 {
		return fmt.Errorf("pipeline.fetch_batch_size must be positive, got %d", c.Pipeline.FetchBatchSize)
	}
	if c.Pipeline.EmbedBatchSize <= 0 {
		return fmt.Errorf("pipeline.embed_batch_size must be positive, got %d", c.Pipeline.EmbedBatchSize)
	}

	validTransports := map[string]bool{"stdio": true, "http": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'http', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
