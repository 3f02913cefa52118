package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for ragstack.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Vector    VectorConfig    `yaml:"vector"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Addr                  string `yaml:"addr"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "voyage" or "mock"
	Model     string `yaml:"model"`       // e.g. "voyage-2"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`    // Override for self-hosted gateways
	Dimension int    `yaml:"dimension"`   // 0 = use the model's known dimension
	BatchSize int    `yaml:"batch_size"`
}

// LLMConfig holds generation provider configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "cerebras"
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	Backend    string         `yaml:"backend"` // "qdrant", "weaviate", "bolt", "memory"
	Collection string         `yaml:"collection"`
	Qdrant     QdrantConfig   `yaml:"qdrant"`
	Weaviate   WeaviateConfig `yaml:"weaviate"`
	Bolt       BoltConfig     `yaml:"bolt"`
}

// QdrantConfig holds connection settings for the Qdrant backend (gRPC).
type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKeyEnv string `yaml:"api_key_env"`
	UseTLS    bool   `yaml:"use_tls"`
}

// WeaviateConfig holds connection settings for the Weaviate backend.
type WeaviateConfig struct {
	Host      string `yaml:"host"` // host:port
	Scheme    string `yaml:"scheme"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// BoltConfig holds settings for the local BoltDB backend.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig holds file-ingestion configuration for the CLI.
type IngestConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkChars   int      `yaml:"chunk_chars"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                  ":8080",
			RequestTimeoutSeconds: 60,
		},
		Embedding: EmbeddingConfig{
			Provider:  "voyage",
			Model:     "voyage-2",
			APIKeyEnv: "VOYAGE_API_KEY",
			Dimension: 1024,
			BatchSize: 100,
		},
		LLM: LLMConfig{
			Provider:    "cerebras",
			Model:       "llama3.1-8b",
			APIKeyEnv:   "CEREBRAS_API_KEY",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Vector: VectorConfig{
			Backend:    "bolt",
			Collection: "embeddings",
			Qdrant: QdrantConfig{
				Host:      "localhost",
				Port:      6334,
				APIKeyEnv: "QDRANT_API_KEY",
			},
			Weaviate: WeaviateConfig{
				Host:      "localhost:8080",
				Scheme:    "http",
				APIKeyEnv: "WEAVIATE_API_KEY",
			},
			Bolt: BoltConfig{
				Path: ".ragstack/vectors.db",
			},
		},
		Ingest: IngestConfig{
			Includes:     []string{"**/*.md", "**/*.txt", "**/*.pdf"},
			Excludes:     []string{"**/node_modules/**", "**/vendor/**", "**/.git/**"},
			ChunkChars:   2000,
			ChunkOverlap: 200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ragstack.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ragstack.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ragstack", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir ensures the .ragstack directory exists under dir.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".ragstack"), 0755)
}
