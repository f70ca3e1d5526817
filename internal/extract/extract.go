// Package extract provides plain-text extraction from PDF files.
package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/unigpt/unigpt/internal/faults"
)

// Extractor extracts per-page text from raw PDF bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses content as a PDF and returns the text of each page in order.
// Pages without a content stream yield an empty string so page numbering stays
// aligned with the file. Returns an extraction fault for corrupt or encrypted
// input, and for PDFs with no extractable text at all (e.g. scanned images).
func (e *Extractor) Extract(content []byte) (pages []string, err error) {
	// The pdf package panics on some malformed files; surface those as
	// extraction faults instead of crashing the caller.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, faults.New(faults.Extraction, "malformed PDF: %v", r)
		}
	}()
	if len(content) == 0 {
		return nil, faults.New(faults.Extraction, "empty file")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, faults.New(faults.Extraction, "open PDF: %v", err)
	}
	numPages := r.NumPage()
	if numPages == 0 {
		return nil, faults.New(faults.Extraction, "PDF has no pages")
	}
	pages = make([]string, 0, numPages)
	empty := true
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, faults.New(faults.Extraction, "extract page %d: %v", i, err)
		}
		if strings.TrimSpace(text) != "" {
			empty = false
		}
		pages = append(pages, text)
	}
	if empty {
		return nil, faults.New(faults.Extraction, "no extractable text in %d pages", numPages)
	}
	return pages, nil
}
