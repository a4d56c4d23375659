// Package storage persists chunk vectors in Qdrant and serves top-k
// similarity queries over them. Upsert is keyed by the deterministic chunk
// UUID, which is the only mutation the index supports.
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/jcarver/docchat/internal/domain"
)

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable.
func NewQdrantStorage(host string, port int) (*QdrantStorage, error) {
	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   host,
		port:   port,
	}

	ctx := context.Background()
	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return s.Health(ctx)
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
// Returns nil if Qdrant is healthy, error otherwise.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection ensures the chunk collection exists with proper
// configuration: 1536-dimension cosine vectors plus a payload index on
// document_id. Idempotent - safe to call multiple times.
func (s *QdrantStorage) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			// Collection already exists, nothing to do
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Per-document lookups and deletes filter on document_id.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CollectionName,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create document_id index: %w", err)
	}

	return nil
}

// ClearCollection deletes all points in the collection.
// Useful for re-indexing scenarios.
func (s *QdrantStorage) ClearCollection(ctx context.Context) error {
	err := s.client.DeleteCollection(ctx, CollectionName)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
// Safe to re-run: point IDs are deterministic, a retried batch converges on
// the same index state.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// UpsertChunks stores chunk vectors in Qdrant in batches of 100. Upsert by
// chunk ID is idempotent: writing the same chunk twice leaves the index in
// the same observable state.
func (s *QdrantStorage) UpsertChunks(ctx context.Context, chunks []*IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// Validate embedding dimensions
	for i, chunk := range chunks {
		if len(chunk.Vector) != VectorDimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Vector), VectorDimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID.String()),
				Vectors: qdrant.NewVectors(chunk.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_id":    chunk.DocumentID.String(),
					"sequence_index": chunk.SequenceIndex,
					"text":           chunk.Text,
					"char_start":     chunk.CharStart,
					"char_end":       chunk.CharEnd,
					"original_name":  chunk.OriginalName,
					"indexed_at":     chunk.IndexedAt.UTC().Format(time.RFC3339),
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return domain.E(domain.KindIndex, "upsert",
				fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err))
		}
	}

	return nil
}

// SearchChunks performs vector similarity search and returns up to k chunks
// ordered by descending score. Score ties are broken by ascending sequence
// index, then document ID, so identical queries produce identical orderings.
func (s *QdrantStorage) SearchChunks(ctx context.Context, vector []float32, k int) ([]*ScoredChunk, error) {
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false), // Don't need vectors in response
	})
	if err != nil {
		return nil, domain.E(domain.KindIndex, "query",
			fmt.Errorf("failed to search chunks: %w", err))
	}

	chunks := make([]*ScoredChunk, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		docID, err := uuid.Parse(payload["document_id"].GetStringValue())
		if err != nil {
			continue // Skip points written by an incompatible schema
		}

		chunks = append(chunks, &ScoredChunk{
			DocumentID:    docID,
			SequenceIndex: int(payload["sequence_index"].GetIntegerValue()),
			Text:          payload["text"].GetStringValue(),
			Score:         float64(result.Score), // Qdrant returns float32, convert to float64
		})
	}

	SortScored(chunks)
	return chunks, nil
}

// SortScored orders hits by descending score, breaking ties by ascending
// sequence index then document ID. Qdrant already returns descending scores;
// the stable re-sort pins down tie ordering for reproducible results.
func SortScored(chunks []*ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SequenceIndex != b.SequenceIndex {
			return a.SequenceIndex < b.SequenceIndex
		}
		return a.DocumentID.String() < b.DocumentID.String()
	})
}

// DeleteDocumentChunks removes every chunk belonging to the given document.
func (s *QdrantStorage) DeleteDocumentChunks(ctx context.Context, documentID uuid.UUID) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID.String()),
			},
		}),
	})
	if err != nil {
		return domain.E(domain.KindIndex, "delete",
			fmt.Errorf("failed to delete chunks for document %s: %w", documentID, err))
	}
	return nil
}

// CountChunks returns the total number of points in the collection.
func (s *QdrantStorage) CountChunks(ctx context.Context) (uint64, error) {
	collection, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return 0, domain.E(domain.KindIndex, "count",
			fmt.Errorf("failed to get collection info: %w", err))
	}

	return collection.GetPointsCount(), nil
}
