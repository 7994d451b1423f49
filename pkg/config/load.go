package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/memtier/pkg/log"
)

// DefaultConfig returns a configuration with working defaults for a
// local single-user setup.
func DefaultConfig() *Config {
	return &Config{
		UserID: os.Getenv("USER"),
		Buffer: BufferConfig{
			Path: "memtier.db",
		},
		Vector: VectorConfig{
			Type: "qdrant",
			Qdrant: QdrantConfig{
				URL:        "http://127.0.0.1:6333",
				Collection: "memories",
				Dimensions: 1024,
			},
			Chromem: ChromemConfig{
				Collection: "memories",
			},
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			BaseURL:  "http://127.0.0.1:11434/v1",
			Model:    "snowflake-arctic-embed2",
		},
		Capture: CaptureConfig{
			StatePath: ".capture_state.json",
		},
		Promotion: PromotionConfig{
			FallbackDir:   "backups",
			Parallelism:   2,
			SeenCacheSize: 1000,
		},
		Facts: FactsConfig{
			BatchSize:   50,
			Parallelism: 2,
		},
		Retention: RetentionConfig{
			Permanent: true,
		},
		Schedule: ScheduleConfig{
			Capture: "*/5 * * * *",
			Promote: "30 3 * * *",
		},
		Logging: log.DefaultConfig(),
	}
}

// Load returns the default configuration with environment overrides
// applied, for running without a config file.
func Load() (*Config, error) {
	config := DefaultConfig()
	applyEnvironmentOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	config := DefaultConfig()

	err := yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvironmentOverrides(config)

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func applyEnvironmentOverrides(config *Config) {
	// Default user override
	if userID := os.Getenv("MEMTIER_USER_ID"); userID != "" {
		config.UserID = userID
	}

	// Buffer path override
	if path := os.Getenv("MEMTIER_BUFFER_PATH"); path != "" {
		config.Buffer.Path = path
	}

	// Qdrant overrides
	if url := os.Getenv("QDRANT_URL"); url != "" {
		config.Vector.Qdrant.URL = url
	}
	if collection := os.Getenv("QDRANT_COLLECTION"); collection != "" {
		config.Vector.Qdrant.Collection = collection
	}

	// PgVector connection string override
	if connStr := os.Getenv("PGVECTOR_URL"); connStr != "" {
		config.Vector.PgVector.ConnectionString = connStr
	}

	// Embedding endpoint overrides
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		config.Embedding.BaseURL = url
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if model := os.Getenv("MEMTIER_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}

	// Capture overrides
	if dir := os.Getenv("MEMTIER_SESSIONS_DIR"); dir != "" {
		config.Capture.SessionsDir = dir
	}
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	if config.Buffer.Path == "" {
		return fmt.Errorf("buffer path is required")
	}

	switch strings.ToLower(config.Vector.Type) {
	case "qdrant":
		if config.Vector.Qdrant.URL == "" {
			return fmt.Errorf("qdrant URL is required for qdrant vector type")
		}
		if config.Vector.Qdrant.Collection == "" {
			return fmt.Errorf("collection name is required for qdrant vector type")
		}
		if config.Vector.Qdrant.Dimensions <= 0 {
			config.Vector.Qdrant.Dimensions = 1024
		}
	case "chromem":
		if config.Vector.Chromem.Collection == "" {
			return fmt.Errorf("collection name is required for chromem vector type")
		}
	case "pgvector":
		if config.Vector.PgVector.ConnectionString == "" {
			return fmt.Errorf("connection string is required for pgvector vector type")
		}
		if config.Vector.PgVector.TableName == "" {
			config.Vector.PgVector.TableName = "memory_points"
		}
		if config.Vector.PgVector.Dimensions <= 0 {
			config.Vector.PgVector.Dimensions = 1024
		}
	default:
		return fmt.Errorf("unsupported vector store type: %s", config.Vector.Type)
	}

	switch strings.ToLower(config.Embedding.Provider) {
	case "openai":
		if config.Embedding.Model == "" {
			return fmt.Errorf("embedding model is required for openai provider")
		}
	case "mock":
		// No validation needed for the mock provider
	default:
		return fmt.Errorf("unsupported embedding provider: %s", config.Embedding.Provider)
	}

	if config.Promotion.Parallelism <= 0 {
		config.Promotion.Parallelism = 2
	}
	if config.Promotion.SeenCacheSize <= 0 {
		config.Promotion.SeenCacheSize = 1000
	}
	if config.Facts.BatchSize <= 0 {
		config.Facts.BatchSize = 50
	}
	if config.Facts.Parallelism <= 0 {
		config.Facts.Parallelism = 2
	}

	if !config.Retention.Permanent && config.Retention.MaxAgeDays <= 0 {
		return fmt.Errorf("max_age_days must be positive when retention is not permanent")
	}

	return nil
}
