// Package domain defines the shared contracts of the ingestion and
// answering pipelines: documents, chunks, retrieval results, and the
// error taxonomy the HTTP boundary maps to transport status codes.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// nsDocument is the UUIDv5 namespace for document identity. Document IDs are
// derived from the stored media path so a re-upload of the same stored file
// reproduces the same ID.
var nsDocument = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // uuid.NameSpaceDNS

// Document is an uploaded source document. Immutable once stored; owned by
// the ingestion pipeline for the duration of indexing.
type Document struct {
	ID           uuid.UUID
	OriginalName string
	ByteSize     int64
	SourcePath   string // stored media path, see media.Store
	ReceivedAt   time.Time
}

// NewDocumentID derives a deterministic document ID from the stored path.
func NewDocumentID(storedPath string) uuid.UUID {
	return uuid.NewSHA1(nsDocument, []byte("doc/"+storedPath))
}

// Chunk is a bounded, overlapping span of a document's extracted text.
// CharStart and CharEnd are rune offsets into the extracted text.
type Chunk struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	SequenceIndex int
	Text          string
	CharStart     int
	CharEnd       int
}

// NewChunkID derives the deterministic chunk ID from (documentID,
// sequenceIndex). Re-splitting the same document reproduces identical IDs,
// which is what makes re-indexing an idempotent upsert.
func NewChunkID(documentID uuid.UUID, sequenceIndex int) uuid.UUID {
	return uuid.NewSHA1(documentID, []byte(fmt.Sprintf("chunk/%d", sequenceIndex)))
}

// RetrievedChunk is a top-k similarity result for one question. Ephemeral.
type RetrievedChunk struct {
	Text          string
	Score         float64
	SequenceIndex int
	DocumentID    uuid.UUID
}

// Answer is the packaged output of the answering orchestrator.
type Answer struct {
	Text             string
	SupportingChunks []RetrievedChunk
}

// IndexReport summarizes a completed ingestion.
type IndexReport struct {
	DocumentID uuid.UUID
	ChunkCount int
}
