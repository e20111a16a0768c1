package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOCAL_EMBEDDINGS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, "./data/corpus.index", cfg.IndexPath)
	assert.False(t, cfg.UseQdrant)
	assert.Equal(t, 6334, cfg.QdrantPort)
}

func TestLoad_RequiresKeyForRemoteEmbeddings(t *testing.T) {
	t.Setenv("LOCAL_EMBEDDINGS", "false")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TOP_K", "3")
	t.Setenv("USE_QDRANT", "true")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_COLLECTION", "corpus_v2")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 3, cfg.TopK)
	assert.True(t, cfg.UseQdrant)
	assert.Equal(t, "qdrant.internal", cfg.QdrantHost)
	assert.Equal(t, "corpus_v2", cfg.QdrantCollection)
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
}
