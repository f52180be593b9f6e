package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
	"github.com/desadigital/citizen-assistant/internal/core/ports"
)

// Dispatcher routes a document to the extractor matching its mime type,
// falling back to the file extension when the upload client sent a generic
// content type.
type Dispatcher struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
}

func NewDispatcher(plain, pdf ports.TextExtractor) *Dispatcher {
	return &Dispatcher{plain: plain, pdf: pdf}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if isPDF(doc) {
		return d.pdf.Extract(ctx, doc)
	}
	if isText(doc) {
		return d.plain.Extract(ctx, doc)
	}
	return "", domain.WrapError(
		domain.ErrInvalidInput,
		"extract text",
		fmt.Errorf("unsupported document type %q (%s)", doc.MimeType, doc.Filename),
	)
}

func isPDF(doc *domain.Document) bool {
	if strings.EqualFold(doc.MimeType, "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.Filename), ".pdf")
}

func isText(doc *domain.Document) bool {
	mime := strings.ToLower(doc.MimeType)
	if strings.HasPrefix(mime, "text/") || mime == "application/json" {
		return true
	}
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".txt", ".md", ".csv", ".json":
		return true
	}
	return false
}
