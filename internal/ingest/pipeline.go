// Package ingest composes extraction, splitting, embedding, and vector
// upsert into the document indexing pipeline. Stages run sequentially; the
// first failure aborts the remaining stages and surfaces the originating
// error, so a report is only returned for a fully indexed document.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcarver/docchat/internal/domain"
	"github.com/jcarver/docchat/internal/splitter"
	"github.com/jcarver/docchat/internal/storage"
)

// Extractor turns uploaded document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, sourceBytes []byte, mimeHint string) (string, error)
}

// Embedder maps texts to fixed-dimension vectors, order-preserving.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists chunk vectors keyed by chunk identity.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks []*storage.IndexedChunk) error
}

// Pipeline orchestrates the full indexing process from extraction to storage.
type Pipeline struct {
	extractor Extractor
	splitter  *splitter.Splitter
	embedder  Embedder
	store     ChunkStore
	logger    *slog.Logger
}

// NewPipeline creates a new ingestion pipeline with the given components.
func NewPipeline(
	extractor Extractor,
	split *splitter.Splitter,
	embedder Embedder,
	store ChunkStore,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		splitter:  split,
		embedder:  embedder,
		store:     store,
		logger:    logger,
	}
}

// Index runs the full pipeline for one document and reports how many chunks
// were written. Chunk identities derive from (documentID, sequenceIndex), so
// re-indexing the same document upserts the same points and the whole
// operation is safe to retry after a partial failure.
func (p *Pipeline) Index(ctx context.Context, doc domain.Document, sourceBytes []byte, mimeHint string) (*domain.IndexReport, error) {
	start := time.Now()
	p.logger.Info("indexing document",
		"document_id", doc.ID,
		"name", doc.OriginalName,
		"bytes", len(sourceBytes),
	)

	// 1. Extract text. Unreadable input is not retried.
	text, err := p.extractor.Extract(ctx, sourceBytes, mimeHint)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	p.logger.Debug("extracted text", "document_id", doc.ID, "chars", len(text))

	// 2. Split into deterministic overlapping chunks.
	chunks := p.splitter.Split(doc.ID, text)
	if len(chunks) == 0 {
		return nil, domain.Errorf(domain.KindExtraction, "split", "document produced no chunks")
	}
	p.logger.Debug("split document", "document_id", doc.ID, "chunks", len(chunks))

	// 3. Batch-embed all chunk texts.
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.Errorf(domain.KindEmbedding, "embed",
			"got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	// 4. Upsert all (chunk, vector) pairs as one logical batch.
	indexedAt := time.Now().UTC()
	indexed := make([]*storage.IndexedChunk, len(chunks))
	for i, chunk := range chunks {
		indexed[i] = &storage.IndexedChunk{
			ID:            chunk.ID,
			DocumentID:    chunk.DocumentID,
			SequenceIndex: chunk.SequenceIndex,
			Text:          chunk.Text,
			CharStart:     chunk.CharStart,
			CharEnd:       chunk.CharEnd,
			OriginalName:  doc.OriginalName,
			IndexedAt:     indexedAt,
			Vector:        vectors[i],
		}
	}

	if err := p.store.UpsertChunks(ctx, indexed); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	p.logger.Info("indexed document",
		"document_id", doc.ID,
		"name", doc.OriginalName,
		"chunks", len(chunks),
		"duration", time.Since(start),
	)

	return &domain.IndexReport{
		DocumentID: doc.ID,
		ChunkCount: len(chunks),
	}, nil
}
