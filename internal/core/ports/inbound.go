package ports

import (
	"context"
	"io"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

// ContextRetriever is the inbound contract of the retrieval pipeline.
// RetrieveContext never fails: upstream errors become an empty result with
// Confidence.Level == none and SuggestFallback == true.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, opts domain.SearchOptions) domain.RAGResult
	ShouldRetrieveContext(ctx context.Context, query string) bool
}

// ChatService answers a single citizen question, grounded on retrieval.
type ChatService interface {
	Answer(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, villageID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
