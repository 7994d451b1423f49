package config

import "github.com/openclaw/memtier/pkg/log"

// Config represents the top-level configuration for memtier.
type Config struct {
	// UserID is the default user whose memory is captured and promoted
	UserID string `yaml:"user_id"`

	// Buffer configures the short-term buffer store
	Buffer BufferConfig `yaml:"buffer"`

	// Vector configures the durable vector store
	Vector VectorConfig `yaml:"vector"`

	// Embedding configures the embedding provider
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Capture configures the transcript capture job
	Capture CaptureConfig `yaml:"capture"`

	// Promotion configures the buffer-to-vector promotion job
	Promotion PromotionConfig `yaml:"promotion"`

	// Facts configures the daily-log fact extraction job
	Facts FactsConfig `yaml:"facts"`

	// Retention configures the memory retention policy
	Retention RetentionConfig `yaml:"retention"`

	// Schedule configures the in-process scheduler
	Schedule ScheduleConfig `yaml:"schedule"`

	// Logging configures the logging behavior
	Logging log.Config `yaml:"logging"`
}

// BufferConfig configures the short-term buffer store.
type BufferConfig struct {
	// Path is the bbolt database file holding per-user buffers
	Path string `yaml:"path"`
}

// VectorConfig configures the durable vector store.
type VectorConfig struct {
	// Type selects the backend ("qdrant", "chromem", "pgvector")
	Type string `yaml:"type"`

	// Qdrant configures the Qdrant REST backend
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Chromem configures the embedded chromem-go backend
	Chromem ChromemConfig `yaml:"chromem"`

	// PgVector configures the PostgreSQL pgvector backend
	PgVector PgVectorConfig `yaml:"pgvector"`
}

// QdrantConfig configures the Qdrant REST backend.
type QdrantConfig struct {
	// URL is the Qdrant server base URL
	URL string `yaml:"url"`

	// Collection is the collection name holding memory points
	Collection string `yaml:"collection"`

	// Dimensions specifies the embedding dimensions
	Dimensions int `yaml:"dimensions"`
}

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	// Collection is the collection name to use
	Collection string `yaml:"collection"`

	// StoragePath is the path for on-disk persistent storage (if empty, in-memory is used)
	StoragePath string `yaml:"storage_path"`
}

// PgVectorConfig configures the PostgreSQL pgvector backend.
type PgVectorConfig struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string `yaml:"connection_string"`

	// TableName is the name of the table to use
	TableName string `yaml:"table_name"`

	// Dimensions specifies the embedding dimensions
	Dimensions int `yaml:"dimensions"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the backend ("openai", "mock")
	Provider string `yaml:"provider"`

	// BaseURL points at an OpenAI-compatible endpoint (e.g. a local Ollama server)
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the embedding endpoint (optional for local servers)
	APIKey string `yaml:"api_key"`

	// Model is the embedding model name
	Model string `yaml:"model"`
}

// CaptureConfig configures the transcript capture job.
type CaptureConfig struct {
	// SessionsDir is the directory of session transcript files (*.jsonl)
	SessionsDir string `yaml:"sessions_dir"`

	// StatePath is the JSON checkpoint file tracking per-transcript offsets
	StatePath string `yaml:"state_path"`

	// IncludeThinking also captures model reasoning text into a side buffer
	IncludeThinking bool `yaml:"include_thinking"`
}

// PromotionConfig configures the buffer-to-vector promotion job.
type PromotionConfig struct {
	// FallbackDir receives JSONL backups when the vector store is unavailable
	FallbackDir string `yaml:"fallback_dir"`

	// Parallelism bounds concurrent embed/upsert calls (2-4 is plenty)
	Parallelism int `yaml:"parallelism"`

	// SeenCacheSize bounds the in-process dedup fast-path cache
	SeenCacheSize int `yaml:"seen_cache_size"`
}

// FactsConfig configures the daily-log fact extraction job.
type FactsConfig struct {
	// LogDir is the directory of YYYY-MM-DD.md daily log files
	LogDir string `yaml:"log_dir"`

	// BatchSize is the number of facts embedded and uploaded per batch
	BatchSize int `yaml:"batch_size"`

	// Parallelism bounds concurrent batch uploads
	Parallelism int `yaml:"parallelism"`
}

// RetentionConfig configures the memory retention policy.
// Memories are kept forever by default; this exists so the policy is a
// configuration decision rather than a hardcoded one.
type RetentionConfig struct {
	// Permanent keeps every memory point indefinitely
	Permanent bool `yaml:"permanent"`

	// MaxAgeDays is only honored when Permanent is false
	MaxAgeDays int `yaml:"max_age_days"`
}

// ScheduleConfig configures the in-process scheduler.
type ScheduleConfig struct {
	// Capture is the cron spec for the capture job
	Capture string `yaml:"capture"`

	// Promote is the cron spec for the promotion job
	Promote string `yaml:"promote"`
}
