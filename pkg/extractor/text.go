package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"
	"github.com/soundprediction/conceptgraph/pkg/utils"
)

// DefaultMaxFileBytes caps documents read by FileTextExtractor.
const DefaultMaxFileBytes int64 = 32 << 20

// TextExtractor produces plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// FileTextExtractor reads documents from the local filesystem.
type FileTextExtractor struct {
	// MaxBytes rejects larger files. Zero means DefaultMaxFileBytes.
	MaxBytes int64
}

// NewFileTextExtractor returns a FileTextExtractor with the given size cap.
func NewFileTextExtractor(maxBytes int64) *FileTextExtractor {
	return &FileTextExtractor{MaxBytes: maxBytes}
}

// Extract reads the file at path and returns its whitespace-collapsed text.
func (e *FileTextExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ExtractionError{Stage: StageText, Err: err}
	}

	limit := e.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &ExtractionError{Stage: StageText, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", &ExtractionError{Stage: StageText, Err: fmt.Errorf("read %s: %w", filepath.Base(path), err)}
	}
	if int64(len(data)) > limit {
		return "", &ExtractionError{Stage: StageText, Err: fmt.Errorf("%s: %w (%d bytes)", filepath.Base(path), ErrDocumentTooLarge, limit)}
	}

	text, err := ExtractBytes(filepath.Base(path), data)
	if err != nil {
		return "", &ExtractionError{Stage: StageText, Err: err}
	}
	return text, nil
}

// ExtractBytes sniffs data by content, falling back to the file extension, and
// returns its text. An empty document yields empty text.
func ExtractBytes(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case isPDF(data):
		return extractPDF(data)
	case ext == ".pdf":
		return "", fmt.Errorf("%s: file claims pdf but is missing the %%PDF header: %w", name, ErrUnsupportedDocument)
	case looksLikeHTML(data) || ext == ".html" || ext == ".htm":
		return extractHTML(string(data)), nil
	case isProbablyText(data):
		return utils.CollapseWhitespace(string(data)), nil
	}
	return "", fmt.Errorf("%s: %w", name, ErrUnsupportedDocument)
}

func isPDF(b []byte) bool {
	return bytes.HasPrefix(b, []byte("%PDF-"))
}

func looksLikeHTML(b []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(b[:min(len(b), 2048)])))
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html")
}

// isProbablyText accepts valid UTF-8 with no NUL bytes and few control characters.
func isProbablyText(b []byte) bool {
	sample := b[:min(len(b), 4096)]
	// A multi-byte rune may be cut at the sample boundary.
	if len(sample) < len(b) {
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(sample); i++ {
			sample = sample[:len(sample)-1]
		}
	}
	if !utf8.Valid(sample) {
		return false
	}

	control := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' && c != '\f' {
			control++
		}
	}
	return len(sample) == 0 || float64(control)/float64(len(sample)) < 0.1
}

// extractPDF recovers from parser panics on corrupt files.
func extractPDF(data []byte) (text string, err error) {
	defer utils.RecoverAsError(&err)

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return utils.CollapseWhitespace(string(b)), nil
}

var (
	htmlScriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlEntities = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'")
)

func extractHTML(s string) string {
	s = htmlScriptRe.ReplaceAllString(s, " ")
	s = htmlTagRe.ReplaceAllString(s, " ")
	return utils.CollapseWhitespace(htmlEntities.Replace(s))
}
