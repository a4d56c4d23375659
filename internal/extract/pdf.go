package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/jcarver/docchat/internal/domain"
)

// extractPDF decodes a PDF into its concatenated page text.
// The pdf parser panics on some malformed files, so the whole decode runs
// behind a recover that converts the panic into an extraction error.
func extractPDF(sourceBytes []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.Errorf(domain.KindExtraction, stage, "malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(sourceBytes), int64(len(sourceBytes)))
	if err != nil {
		return "", domain.E(domain.KindExtraction, stage, fmt.Errorf("open pdf: %w", err))
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.E(domain.KindExtraction, stage, fmt.Errorf("read pdf text: %w", err))
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", domain.E(domain.KindExtraction, stage, fmt.Errorf("read pdf text: %w", err))
	}

	return buf.String(), nil
}
