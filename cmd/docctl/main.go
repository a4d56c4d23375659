// Package main provides the docctl CLI for managing the docchat index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jcarver/docchat/internal/answer"
	"github.com/jcarver/docchat/internal/config"
	"github.com/jcarver/docchat/internal/domain"
	"github.com/jcarver/docchat/internal/embedding"
	"github.com/jcarver/docchat/internal/extract"
	"github.com/jcarver/docchat/internal/ingest"
	"github.com/jcarver/docchat/internal/llm"
	"github.com/jcarver/docchat/internal/media"
	"github.com/jcarver/docchat/internal/splitter"
	"github.com/jcarver/docchat/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docctl",
	Short: "Document chat index management tool",
	Long:  "CLI tool for indexing documents, asking questions, and managing the Qdrant-backed document index",
}

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index one or more local documents",
	Long: `Extracts text from each file, splits it into overlapping chunks,
embeds the chunks, and upserts them into Qdrant. Re-indexing the same
stored document overwrites its existing chunks.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index health and chunk count",
	RunE:  runStatus,
}

var removeCmd = &cobra.Command{
	Use:   "remove <document-id-or-stored-path>",
	Short: "Remove a document's chunks from the index",
	Long: `Deletes all indexed chunks belonging to one document. The argument
is either the document UUID or the stored media path (e.g.
"doc/1700000000000report.pdf") the ID derives from.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete and recreate the whole collection",
	RunE:  runClear,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  "Writes the default configuration to the --config path as a starting point for editing.",
	RunE:  runInit,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "docchat.yaml", "path to config file")
	rootCmd.AddCommand(initCmd, indexCmd, askCmd, statusCmd, removeCmd, clearCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env groups the wired components the subcommands share.
type env struct {
	cfg      *config.Config
	store    *storage.QdrantStorage
	embedder *embedding.Embedder
	client   *embedding.Client
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, err
	}

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &env{
		cfg:      cfg,
		store:    store,
		embedder: embedding.NewEmbedder(client, 0),
		client:   client,
	}, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := config.Default().Save(configPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	split, err := splitter.New(e.cfg.MaxChunkSize, e.cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	mediaStore := media.NewStore(e.cfg.MediaRoot)
	pipeline := ingest.NewPipeline(extract.New(), split, e.embedder, e.store, slog.Default())

	totalChunks := 0
	for _, path := range args {
		sourceBytes, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		name := filepath.Base(path)
		storedPath, err := mediaStore.Save(name, sourceBytes)
		if err != nil {
			return err
		}

		doc := domain.Document{
			ID:           domain.NewDocumentID(storedPath),
			OriginalName: name,
			ByteSize:     int64(len(sourceBytes)),
			SourcePath:   storedPath,
			ReceivedAt:   time.Now().UTC(),
		}

		report, err := pipeline.Index(ctx, doc, sourceBytes, "")
		if err != nil {
			return fmt.Errorf("index %s: %w", path, err)
		}

		fmt.Printf("Indexed %s: %d chunks (document %s)\n", name, report.ChunkCount, report.DocumentID)
		totalChunks += report.ChunkCount
	}

	fmt.Printf("\nDone: %d file(s), %d chunks in %s\n", len(args), totalChunks, time.Since(start).Round(time.Millisecond))
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	completer := llm.NewClient(e.client.Client(), e.cfg.ChatModel)
	opts := answer.DefaultOptions()
	opts.TopK = e.cfg.TopK
	orchestrator := answer.New(e.embedder, e.store, completer, opts, slog.Default())

	ans, err := orchestrator.Answer(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(ans.Text)
	if len(ans.SupportingChunks) > 0 {
		fmt.Println("\nSources:")
		for i, c := range ans.SupportingChunks {
			fmt.Printf("  [%d] score=%.3f document=%s chunk=%d\n", i+1, c.Score, c.DocumentID, c.SequenceIndex)
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer store.Close()

	if err := store.Health(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}
	fmt.Printf("Qdrant healthy at %s:%d\n", cfg.QdrantHost, cfg.QdrantPort)

	count, err := store.CountChunks(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Collection %q: %d chunks\n", storage.CollectionName, count)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer store.Close()

	documentID, err := uuid.Parse(args[0])
	if err != nil {
		// Not a UUID: treat the argument as a stored media path.
		documentID = domain.NewDocumentID(args[0])
	}

	if err := store.DeleteDocumentChunks(ctx, documentID); err != nil {
		return err
	}
	fmt.Printf("Removed chunks for document %s\n", documentID)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return fmt.Errorf("connect to Qdrant: %w", err)
	}
	defer store.Close()

	if err := store.ClearCollection(ctx); err != nil {
		return err
	}
	fmt.Println("Collection cleared")
	return nil
}
