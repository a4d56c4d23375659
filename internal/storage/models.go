package storage

import (
	"time"

	"github.com/google/uuid"
)

// IndexedChunk is the persisted unit in the vector index: a chunk vector plus
// the payload needed to reconstruct a retrieval result. The point ID is the
// chunk's deterministic UUID, so upserting the same chunk twice converges.
type IndexedChunk struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	SequenceIndex int
	Text          string
	CharStart     int
	CharEnd       int
	OriginalName  string    // uploaded filename, for traceability
	IndexedAt     time.Time // when this chunk version was written
	Vector        []float32 // 1536-dim vector (text-embedding-3-small)
}

// ScoredChunk is a similarity search hit.
type ScoredChunk struct {
	DocumentID    uuid.UUID
	SequenceIndex int
	Text          string
	Score         float64
}

// CollectionName is the single Qdrant collection for all document chunks.
const CollectionName = "documents"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536
