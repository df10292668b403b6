package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFileTextExtractor_PlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("Neural   networks\n\nlearn\tfrom data. Ünïcode ok."))

	text, err := NewFileTextExtractor(0).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Neural networks learn from data. Ünïcode ok.", text)
}

func TestFileTextExtractor_HTML(t *testing.T) {
	path := writeFile(t, "page.html", []byte(`<!DOCTYPE html><html><head><style>p{}</style></head><body><p>Graphs &amp; trees</p></body></html>`))

	text, err := NewFileTextExtractor(0).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Graphs & trees", text)
}

func TestFileTextExtractor_Empty(t *testing.T) {
	path := writeFile(t, "empty.txt", nil)

	text, err := NewFileTextExtractor(0).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFileTextExtractor_Unsupported(t *testing.T) {
	path := writeFile(t, "blob.bin", []byte{0x00, 0x01, 0x02, 0xff, 0xfe})

	_, err := NewFileTextExtractor(0).Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDocument)
	assert.ErrorIs(t, err, &ExtractionError{Stage: StageText})
	assert.False(t, errors.Is(err, &ExtractionError{Stage: StageConcepts}))
}

func TestFileTextExtractor_FakePDF(t *testing.T) {
	path := writeFile(t, "report.pdf", []byte("plain text pretending to be a pdf"))
	_, err := NewFileTextExtractor(0).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedDocument)

	corrupt := writeFile(t, "corrupt.pdf", []byte("%PDF-1.4\nthis is not a real pdf body"))
	_, err = NewFileTextExtractor(0).Extract(context.Background(), corrupt)
	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, StageText, extractionErr.Stage)
}

func TestFileTextExtractor_TooLarge(t *testing.T) {
	path := writeFile(t, "big.txt", []byte(strings.Repeat("a", 64)))

	_, err := NewFileTextExtractor(32).Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestFileTextExtractor_MissingFileAndCancelledContext(t *testing.T) {
	_, err := NewFileTextExtractor(0).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileTextExtractor(0).Extract(ctx, writeFile(t, "a.txt", []byte("a")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsProbablyText(t *testing.T) {
	assert.True(t, isProbablyText([]byte("hello\nworld")))
	assert.True(t, isProbablyText([]byte("日本語のテキスト")))
	assert.False(t, isProbablyText([]byte{'a', 0x00, 'b'}))
	assert.False(t, isProbablyText([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb, 0xfa}))
	assert.False(t, isProbablyText([]byte{0x01, 0x02, 0x03, 'a'}))
}
