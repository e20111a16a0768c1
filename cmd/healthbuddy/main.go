// Package main provides the healthbuddy CLI: corpus ingestion and an
// interactive grounded chat session.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/rishabh0208/health-buddy/internal/chat"
	"github.com/rishabh0208/health-buddy/internal/config"
	"github.com/rishabh0208/health-buddy/internal/conversation"
	"github.com/rishabh0208/health-buddy/internal/docsource"
	"github.com/rishabh0208/health-buddy/internal/embedding"
	"github.com/rishabh0208/health-buddy/internal/generate"
	"github.com/rishabh0208/health-buddy/internal/index"
	"github.com/rishabh0208/health-buddy/internal/ingest"
	"github.com/rishabh0208/health-buddy/internal/retrieval"
)

var rootCmd = &cobra.Command{
	Use:   "healthbuddy",
	Short: "Health chatbot with a retrieval-grounded knowledge base",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector index from the document corpus",
	Long: `Chunks the corpus, embeds every chunk, and publishes the vector index.

The run is resumable: embeddings are checkpointed before index construction,
and a re-run with both artifacts present does no new work. Delete the
artifacts to force a full rebuild.

Environment variables:
  DOCS_DIR         Local corpus directory of .txt/.md files (default: ./docs)
  GITHUB_REPO      Ingest from "owner/repo" instead of DOCS_DIR (optional)
  CHECKPOINT_PATH  Embeddings checkpoint file (default: ./data/embeddings.json)
  INDEX_PATH       Persisted index file (default: ./data/corpus.index)
  OPENAI_API_KEY   OpenAI API key (required unless LOCAL_EMBEDDINGS=true)
  USE_QDRANT       Insert into a Qdrant collection instead of the local index`,
	RunE: runIngest,
}

var chatCmd = &cobra.Command{
	Use:   "chat [user]",
	Short: "Start an interactive chat session",
	Long: `Starts a conversation session for the given user key (default "local").

Each prompt is answered with a streamed reply grounded in the ingested corpus.
In-session commands:
  /new            start a new conversation
  /list           list this session's conversations
  /summary        generate a health summary of the session
  /symptoms week|month
                  show recorded symptom observations
  /quit           end the session`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
	return &client
}

func newEmbedder(cfg *config.Config) embedding.Embedder {
	if cfg.LocalEmbeddings {
		return embedding.NewLocal(0)
	}
	return embedding.NewOpenAI(newOpenAIClient(cfg), 0)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var source docsource.Source
	if cfg.GitHubRepo != "" {
		owner, repo, ok := strings.Cut(cfg.GitHubRepo, "/")
		if !ok {
			return fmt.Errorf("GITHUB_REPO must be owner/repo, got %q", cfg.GitHubRepo)
		}
		fmt.Printf("Ingesting from github.com/%s/%s...\n", owner, repo)
		source, err = docsource.NewGitHubSource(owner, repo, "", cfg.GitHubToken)
		if err != nil {
			return fmt.Errorf("create github source: %w", err)
		}
	} else {
		fmt.Printf("Ingesting from %s...\n", cfg.DocsDir)
		source, err = docsource.NewFileSource(cfg.DocsDir)
		if err != nil {
			return fmt.Errorf("open corpus: %w", err)
		}
	}

	embedder := newEmbedder(cfg)

	pipelineCfg := ingest.Config{
		Embedder:       embedder,
		CheckpointPath: cfg.CheckpointPath,
		IndexPath:      cfg.IndexPath,
		ChunkSize:      cfg.ChunkSize,
		Logger:         slog.Default(),
	}
	if cfg.UseQdrant {
		fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)
		remote, err := index.NewQdrant(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, embedder.Dimension())
		if err != nil {
			return fmt.Errorf("connect to qdrant: %w", err)
		}
		defer remote.Close()
		pipelineCfg.Remote = remote
	}

	pipeline, err := ingest.New(pipelineCfg)
	if err != nil {
		return err
	}

	result, err := pipeline.Run(ctx, source)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	fmt.Printf("  Embeddings computed: %t\n", result.EmbeddingsComputed)
	fmt.Printf("  Index built: %t\n", result.IndexBuilt)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Second))
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ownerKey := "local"
	if len(args) > 0 {
		ownerKey = args[0]
	}

	embedder := newEmbedder(cfg)

	var retriever chat.Retriever
	if cfg.UseQdrant {
		remote, err := index.NewQdrant(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, embedder.Dimension())
		if err != nil {
			return fmt.Errorf("connect to qdrant: %w", err)
		}
		defer remote.Close()
		retriever = retrieval.New(embedder, remote, slog.Default())
	} else {
		retriever = retrieval.NewFromFile(embedder, cfg.IndexPath, slog.Default())
	}

	generator := generate.NewOpenAI(newOpenAIClient(cfg), openai.ChatModel(cfg.ChatModel))
	engine := chat.NewEngine(
		conversation.NewMemStore(),
		conversation.NewMemProfileStore(),
		generator,
		retriever,
		chat.WithTopK(cfg.TopK),
	)

	fmt.Printf("Chatting as %q. Type /quit to exit, /new for a new conversation.\n", ownerKey)
	return chatLoop(ctx, engine, ownerKey)
}

func chatLoop(ctx context.Context, engine *chat.Engine, ownerKey string) error {
	scanner := bufio.NewScanner(os.Stdin)
	conversationID := ""

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runSessionCommand(ctx, engine, ownerKey, line, &conversationID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		stream, err := engine.SubmitTurn(ctx, ownerKey, line, conversationID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		meta := stream.Meta()
		if conversationID == "" {
			conversationID = meta.ConversationID
			fmt.Printf("[conversation %s]\n", conversationID)
		}
		if len(meta.ContextChunks) > 0 {
			fmt.Printf("[%d context chunks]\n", len(meta.ContextChunks))
		}

		for stream.Next() {
			fmt.Print(stream.Current())
		}
		fmt.Println()
		if err := stream.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "reply failed, nothing saved: %v\n", err)
		}
	}
}

func runSessionCommand(ctx context.Context, engine *chat.Engine, ownerKey, line string, conversationID *string) (quit bool, err error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		*conversationID = ""
		fmt.Println("Starting a new conversation.")
		return false, nil

	case "/list":
		list, err := engine.List(ctx, ownerKey)
		if err != nil {
			return false, err
		}
		if len(list) == 0 {
			fmt.Println("No conversations yet.")
			return false, nil
		}
		for _, s := range list {
			fmt.Printf("  %s  %s\n", s.ID, s.Title)
		}
		return false, nil

	case "/summary":
		summary, err := engine.HealthSummary(ctx, ownerKey)
		if err != nil {
			return false, err
		}
		fmt.Println(summary)
		return false, nil

	case "/symptoms":
		window := chat.Window(strings.TrimSpace(arg))
		if window == "" {
			window = chat.WindowWeek
		}
		history, err := engine.SymptomHistory(ctx, ownerKey, window)
		if err != nil {
			return false, err
		}
		if len(history) == 0 {
			fmt.Println("No symptoms recorded in this window.")
			return false, nil
		}
		for symptom, events := range history {
			dates := make([]string, len(events))
			for i, at := range events {
				dates[i] = at.Format("2006-01-02")
			}
			fmt.Printf("  %s: %s\n", symptom, strings.Join(dates, ", "))
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
}
