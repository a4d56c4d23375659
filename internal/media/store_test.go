package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestSave_PathScheme(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	s.now = fixedClock(1700000000000)

	rel, err := s.Save("report.pdf", []byte("%PDF-1.4 data"))
	require.NoError(t, err)

	assert.Equal(t, "doc/1700000000000report.pdf", rel)

	data, err := os.ReadFile(s.FullPath(rel))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 data", string(data))
}

func TestSave_CreatesCategoryDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "media")
	s := NewStore(root)

	rel, err := s.Save("a.txt", []byte("x"))
	require.NoError(t, err)
	assert.FileExists(t, s.FullPath(rel))
}

func TestSave_SanitizesHostileNames(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	s.now = fixedClock(42)

	rel, err := s.Save("../../etc/passwd", []byte("nope"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rel, "doc/"), "stored path %q escapes the doc category", rel)
	assert.NotContains(t, rel, "..")

	// The file must land inside the media root.
	full, err := filepath.Abs(s.FullPath(rel))
	require.NoError(t, err)
	absRoot, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, absRoot))
}

func TestSave_EmptyNameFallsBack(t *testing.T) {
	s := NewStore(t.TempDir())
	s.now = fixedClock(7)

	rel, err := s.Save("", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "doc/7upload", rel)
}
