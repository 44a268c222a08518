package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrDocumentUnreadable marks a source file that cannot be parsed as a PDF or
// yields no extractable text. Multi-document runs may skip such a file; a
// single-document run fails on it.
var ErrDocumentUnreadable = errors.New("document unreadable")

// Extractor yields the raw text of one source document.
type Extractor interface {
	Text(path string) (string, error)
}

type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (e *PDFExtractor) Text(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf %s: %v", ErrDocumentUnreadable, path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extract pdf text %s: %v", ErrDocumentUnreadable, path, err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("%w: read extracted text %s: %v", ErrDocumentUnreadable, path, err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("%w: no extractable text in %s", ErrDocumentUnreadable, path)
	}
	return text, nil
}
