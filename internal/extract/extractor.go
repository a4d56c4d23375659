// Package extract turns uploaded document bytes into plain text. Extraction
// is a pure transform: malformed input is not transient and is never retried.
package extract

import (
	"bytes"
	"context"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/jcarver/docchat/internal/domain"
)

const stage = "extract"

// MIME types the extractor handles.
const (
	MIMEPDF      = "application/pdf"
	MIMEMarkdown = "text/markdown"
	MIMEPlain    = "text/plain"
)

// Extractor converts supported document formats to plain text.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract converts sourceBytes to plain text using mimeHint to pick the
// decoder. An empty hint falls back to content sniffing. Corrupt input,
// unsupported formats, and documents with no extractable text all fail with
// an extraction error.
func (e *Extractor) Extract(ctx context.Context, sourceBytes []byte, mimeHint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.E(domain.KindExtraction, stage, err)
	}
	if len(sourceBytes) == 0 {
		return "", domain.Errorf(domain.KindExtraction, stage, "empty document")
	}

	var (
		text string
		err  error
	)
	switch normalizeMIME(mimeHint, sourceBytes) {
	case MIMEPDF:
		text, err = extractPDF(sourceBytes)
	case MIMEMarkdown:
		text, err = extractMarkdown(sourceBytes)
	case MIMEPlain:
		text, err = extractPlain(sourceBytes)
	default:
		return "", domain.Errorf(domain.KindExtraction, stage, "unsupported document type %q", mimeHint)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.Errorf(domain.KindExtraction, stage, "no extractable text")
	}
	return text, nil
}

// normalizeMIME strips parameters from the hint and sniffs the content when
// the hint is missing or generic.
func normalizeMIME(hint string, sourceBytes []byte) string {
	if hint != "" {
		if mt, _, err := mime.ParseMediaType(hint); err == nil {
			hint = mt
		}
	}

	switch hint {
	case MIMEPDF, MIMEMarkdown, MIMEPlain:
		return hint
	case "application/octet-stream", "":
		// Fall through to sniffing.
	default:
		return hint
	}

	if bytes.HasPrefix(sourceBytes, []byte("%PDF-")) {
		return MIMEPDF
	}
	if utf8.Valid(sourceBytes) {
		return MIMEPlain
	}
	return hint
}

func extractPlain(sourceBytes []byte) (string, error) {
	if !utf8.Valid(sourceBytes) {
		return "", domain.Errorf(domain.KindExtraction, stage, "plain text document is not valid UTF-8")
	}
	return string(sourceBytes), nil
}
