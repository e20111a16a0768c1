// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration.
type Config struct {
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	ChatModel    string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	// Paths for the ingestion artifacts and corpus.
	DocsDir        string `envconfig:"DOCS_DIR" default:"./docs"`
	CheckpointPath string `envconfig:"CHECKPOINT_PATH" default:"./data/embeddings.json"`
	IndexPath      string `envconfig:"INDEX_PATH" default:"./data/corpus.index"`

	// ChunkSize is the target chunk length in characters.
	ChunkSize int `envconfig:"CHUNK_SIZE" default:"500"`
	TopK      int `envconfig:"TOP_K" default:"5"`

	// LocalEmbeddings switches to the deterministic offline embedder; no
	// OpenAI key is needed for ingestion or retrieval in that mode.
	LocalEmbeddings bool `envconfig:"LOCAL_EMBEDDINGS" default:"false"`

	// Qdrant settings; UseQdrant switches the index backend from the local
	// flat file to a Qdrant collection.
	UseQdrant        bool   `envconfig:"USE_QDRANT" default:"false"`
	QdrantHost       string `envconfig:"QDRANT_HOST" default:"localhost"`
	QdrantPort       int    `envconfig:"QDRANT_PORT" default:"6334"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"health_chunks"`

	// Optional GitHub corpus source ("owner/repo"); DocsDir is used when empty.
	GitHubRepo  string `envconfig:"GITHUB_REPO"`
	GitHubToken string `envconfig:"GITHUB_TOKEN"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("HEALTHBUDDY", &cfg); err != nil {
		return nil, fmt.Errorf("process config: %w", err)
	}

	if !cfg.LocalEmbeddings && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required unless LOCAL_EMBEDDINGS is set")
	}
	return &cfg, nil
}
