package ports

import (
	"context"
	"io"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

// Embedder builds dense vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher indexes chunks and performs pure dense-vector search.
type VectorSearcher interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, q domain.VectorQuery) ([]domain.SearchCandidate, error)
}

// HybridSearcher returns pre-fused dense+sparse candidates, already filtered
// to the requested score threshold.
type HybridSearcher interface {
	HybridSearch(ctx context.Context, query string, queryVector []float32, q domain.VectorQuery) ([]domain.SearchCandidate, error)
}

// IntentClassifier is the delegated micro-classification call deciding
// whether retrieval is needed for a query.
type IntentClassifier interface {
	ClassifyRAGIntent(ctx context.Context, query, sessionContext string) (domain.IntentDecision, error)
}

// ExpansionGenerator produces query-expansion text from a specific backend
// model, or fails with a classified error kind.
type ExpansionGenerator interface {
	GenerateExpansion(ctx context.Context, model, query string) (string, error)
}

// AnswerGenerator creates the final user-facing answer from retrieval output.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, result domain.RAGResult) (string, error)
}

// RetrievalRecorder is the fire-and-forget analytics hook counting which
// fragments were surfaced to users.
type RetrievalRecorder interface {
	RecordBatchRetrievals(ctx context.Context, ids []string) error
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}
