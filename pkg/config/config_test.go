package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytes(t *testing.T) {
	yamlConfig := `
user_id: vansh
buffer:
  path: /var/lib/memtier/buffer.db
vector:
  type: qdrant
  qdrant:
    url: http://10.0.0.40:6333
    collection: memories
    dimensions: 1024
embedding:
  provider: openai
  base_url: http://10.0.0.40:11434/v1
  model: snowflake-arctic-embed2
promotion:
  parallelism: 4
retention:
  permanent: false
  max_age_days: 365
`
	cfg, err := LoadFromBytes([]byte(yamlConfig))
	require.NoError(t, err)

	assert.Equal(t, "vansh", cfg.UserID)
	assert.Equal(t, "/var/lib/memtier/buffer.db", cfg.Buffer.Path)
	assert.Equal(t, "http://10.0.0.40:6333", cfg.Vector.Qdrant.URL)
	assert.Equal(t, 4, cfg.Promotion.Parallelism)
	assert.False(t, cfg.Retention.Permanent)
	assert.Equal(t, 365, cfg.Retention.MaxAgeDays)
}

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte("user_id: vansh"))
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.Vector.Type)
	assert.Equal(t, 1024, cfg.Vector.Qdrant.Dimensions)
	assert.Equal(t, "snowflake-arctic-embed2", cfg.Embedding.Model)
	assert.Equal(t, 1000, cfg.Promotion.SeenCacheSize)
	assert.Equal(t, 50, cfg.Facts.BatchSize)
	assert.True(t, cfg.Retention.Permanent)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule.Capture)
}

func TestMissingUserIDFailsFast(t *testing.T) {
	t.Setenv("MEMTIER_USER_ID", "")
	t.Setenv("USER", "")

	_, err := LoadFromBytes([]byte("user_id: ''"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MEMTIER_USER_ID", "from-env")
	t.Setenv("QDRANT_URL", "http://qdrant.internal:6333")
	t.Setenv("MEMTIER_EMBEDDING_MODEL", "nomic-embed-text")

	cfg, err := LoadFromBytes([]byte("user_id: from-file"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.UserID)
	assert.Equal(t, "http://qdrant.internal:6333", cfg.Vector.Qdrant.URL)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
}

func TestValidateVectorBackends(t *testing.T) {
	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := LoadFromBytes([]byte("user_id: vansh\nvector:\n  type: faiss"))
		assert.Error(t, err)
	})

	t.Run("chromem needs collection", func(t *testing.T) {
		_, err := LoadFromBytes([]byte("user_id: vansh\nvector:\n  type: chromem\n  chromem:\n    collection: ''"))
		assert.Error(t, err)
	})

	t.Run("pgvector gets table default", func(t *testing.T) {
		cfg, err := LoadFromBytes([]byte(
			"user_id: vansh\nvector:\n  type: pgvector\n  pgvector:\n    connection_string: postgres://localhost/mem"))
		require.NoError(t, err)
		assert.Equal(t, "memory_points", cfg.Vector.PgVector.TableName)
		assert.Equal(t, 1024, cfg.Vector.PgVector.Dimensions)
	})
}

func TestValidateRetention(t *testing.T) {
	_, err := LoadFromBytes([]byte("user_id: vansh\nretention:\n  permanent: false"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_age_days")
}

func TestValidateEmbedding(t *testing.T) {
	_, err := LoadFromBytes([]byte("user_id: vansh\nembedding:\n  provider: openai\n  model: ''"))
	assert.Error(t, err)

	cfg, err := LoadFromBytes([]byte("user_id: vansh\nembedding:\n  provider: mock"))
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
}
