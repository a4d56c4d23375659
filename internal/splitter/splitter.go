// Package splitter partitions extracted text into fixed-size overlapping
// windows. Splitting is a pure function of its inputs: identical text and
// parameters always produce byte-identical chunk spans, which the ingestion
// pipeline relies on for idempotent re-indexing.
package splitter

import (
	"github.com/google/uuid"

	"github.com/jcarver/docchat/internal/domain"
)

const (
	// DefaultMaxChunkSize is the maximum chunk span in runes.
	DefaultMaxChunkSize = 1000

	// DefaultOverlap is how many runes consecutive chunks share.
	DefaultOverlap = 200
)

// Splitter emits overlapping chunks of at most maxChunkSize runes.
type Splitter struct {
	maxChunkSize int
	overlap      int
}

// New validates the chunking parameters and returns a Splitter.
// overlap must be strictly less than maxChunkSize or every window advance
// would make zero or negative progress.
func New(maxChunkSize, overlap int) (*Splitter, error) {
	if maxChunkSize <= 0 {
		return nil, domain.Errorf(domain.KindConfiguration, "split",
			"max chunk size must be positive, got %d", maxChunkSize)
	}
	if overlap < 0 {
		return nil, domain.Errorf(domain.KindConfiguration, "split",
			"overlap must be non-negative, got %d", overlap)
	}
	if overlap >= maxChunkSize {
		return nil, domain.Errorf(domain.KindConfiguration, "split",
			"overlap %d must be less than max chunk size %d", overlap, maxChunkSize)
	}
	return &Splitter{maxChunkSize: maxChunkSize, overlap: overlap}, nil
}

// Default returns a Splitter with the standard 1000/200 parameters.
func Default() *Splitter {
	s, err := New(DefaultMaxChunkSize, DefaultOverlap)
	if err != nil {
		panic(err) // constants are valid
	}
	return s
}

// Split partitions text into ordered chunks. Offsets are rune positions in
// the extracted text. Each chunk spans [offset, offset+maxChunkSize) capped at
// the end of text; the window advances by maxChunkSize-overlap so consecutive
// chunks share exactly overlap runes, except that the final chunk carries the
// remainder. Text no longer than maxChunkSize yields a single chunk. Empty
// text yields no chunks.
func (s *Splitter) Split(documentID uuid.UUID, text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.maxChunkSize - s.overlap
	var chunks []domain.Chunk
	for start := 0; ; start += step {
		end := start + s.maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		seq := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:            domain.NewChunkID(documentID, seq),
			DocumentID:    documentID,
			SequenceIndex: seq,
			Text:          string(runes[start:end]),
			CharStart:     start,
			CharEnd:       end,
		})

		if end == len(runes) {
			return chunks
		}
	}
}
