// Package main provides the docchat HTTP server entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jcarver/docchat/internal/answer"
	"github.com/jcarver/docchat/internal/config"
	"github.com/jcarver/docchat/internal/embedding"
	"github.com/jcarver/docchat/internal/extract"
	"github.com/jcarver/docchat/internal/ingest"
	"github.com/jcarver/docchat/internal/llm"
	"github.com/jcarver/docchat/internal/media"
	"github.com/jcarver/docchat/internal/server"
	"github.com/jcarver/docchat/internal/splitter"
	"github.com/jcarver/docchat/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	configPath := flag.String("config", "docchat.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Cancel on SIGTERM/SIGINT for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, err := storage.NewQdrantStorage(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		return err
	}

	embeddingClient, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return err
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // default batch size

	split, err := splitter.New(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(extract.New(), split, embedder, store, logger)

	completer := llm.NewClient(embeddingClient.Client(), cfg.ChatModel)
	opts := answer.DefaultOptions()
	opts.TopK = cfg.TopK
	orchestrator := answer.New(embedder, store, completer, opts, logger)

	mediaStore := media.NewStore(cfg.MediaRoot)

	srv := server.New(server.Config{
		Port:            cfg.Port,
		AllowAllOrigins: cfg.AllowAllOrigins,
	}, mediaStore, pipeline, orchestrator, store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}
