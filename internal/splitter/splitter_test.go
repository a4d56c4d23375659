package splitter

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcarver/docchat/internal/domain"
)

var testDocID = uuid.MustParse("a7e2c9f4-1b3d-4e5f-8a9b-0c1d2e3f4a5b")

func TestNew_RejectsBadParameters(t *testing.T) {
	tests := []struct {
		name         string
		maxChunkSize int
		overlap      int
	}{
		{"overlap equals max", 1000, 1000},
		{"overlap exceeds max", 200, 1000},
		{"zero max", 0, 0},
		{"negative max", -1, 0},
		{"negative overlap", 1000, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.maxChunkSize, tt.overlap)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, domain.IsKind(err, domain.KindConfiguration),
				"expected configuration error, got %v", err)
		})
	}
}

func TestSplit_ShortDocumentSingleChunk(t *testing.T) {
	text := strings.Repeat("a", 500)

	chunks := Default().Split(testDocID, text)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, 500, chunks[0].CharEnd)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
}

func TestSplit_LongDocumentSpans(t *testing.T) {
	text := strings.Repeat("x", 2300)

	chunks := Default().Split(testDocID, text)

	require.Len(t, chunks, 3)

	wantSpans := [][2]int{{0, 1000}, {800, 1800}, {1600, 2300}}
	for i, want := range wantSpans {
		assert.Equal(t, want[0], chunks[i].CharStart, "chunk %d start", i)
		assert.Equal(t, want[1], chunks[i].CharEnd, "chunk %d end", i)
		assert.Equal(t, i, chunks[i].SequenceIndex, "chunk %d sequence", i)
	}
	assert.Len(t, chunks[2].Text, 700)
}

func TestSplit_ExactBoundary(t *testing.T) {
	text := strings.Repeat("b", 1000)

	chunks := Default().Split(testDocID, text)

	require.Len(t, chunks, 1)
	assert.Equal(t, 1000, chunks[0].CharEnd)
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 80)

	first := Default().Split(testDocID, text)
	second := Default().Split(testDocID, text)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i], "chunk %d differs between runs", i)
	}
}

func TestSplit_OverlapInvariant(t *testing.T) {
	text := strings.Repeat("z", 4321)

	chunks := Default().Split(testDocID, text)
	require.Greater(t, len(chunks), 2)

	for i := 0; i < len(chunks)-1; i++ {
		overlap := chunks[i].CharEnd - chunks[i+1].CharStart
		assert.Equal(t, DefaultOverlap, overlap,
			"chunks %d and %d should share exactly %d runes", i, i+1, DefaultOverlap)
	}
}

func TestSplit_CoverageReconstructsText(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 150)

	chunks := Default().Split(testDocID, text)
	require.NotEmpty(t, chunks)

	// Rebuild the document by trimming each chunk's leading overlap.
	var b strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		runes := []rune(c.Text)
		b.WriteString(string(runes[prevEnd-c.CharStart:]))
		prevEnd = c.CharEnd
	}
	assert.Equal(t, text, b.String())
}

func TestSplit_RuneOffsets(t *testing.T) {
	// Multibyte characters count as one position each.
	text := strings.Repeat("héllo wörld ", 100) // 1200 runes

	chunks := Default().Split(testDocID, text)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1000, chunks[0].CharEnd)
	assert.Equal(t, 800, chunks[1].CharStart)
	assert.Equal(t, 1200, chunks[1].CharEnd)
	assert.Len(t, []rune(chunks[0].Text), 1000)
}

func TestSplit_EmptyText(t *testing.T) {
	chunks := Default().Split(testDocID, "")
	assert.Empty(t, chunks)
}

func TestSplit_ChunkIDsDeterministic(t *testing.T) {
	text := strings.Repeat("q", 2500)

	first := Default().Split(testDocID, text)
	second := Default().Split(testDocID, text)

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, domain.NewChunkID(testDocID, i), first[i].ID)
	}

	// A different document must not collide.
	otherDoc := uuid.MustParse("b8f3d0a5-2c4e-5f60-9b0c-1d2e3f4a5b6c")
	other := Default().Split(otherDoc, text)
	assert.NotEqual(t, first[0].ID, other[0].ID)
}
