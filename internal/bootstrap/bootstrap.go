package bootstrap

import (
	"context"
	"fmt"

	"github.com/desadigital/citizen-assistant/internal/config"
	"github.com/desadigital/citizen-assistant/internal/core/ports"
	"github.com/desadigital/citizen-assistant/internal/core/usecase"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/chunking"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/extractor"
	pdfextractor "github.com/desadigital/citizen-assistant/internal/infrastructure/extractor/pdf"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/llm/ollama"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/queue/nats"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/repository/postgres"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/resilience"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/storage/localfs"
	"github.com/desadigital/citizen-assistant/internal/infrastructure/vector/qdrant"
)

// App wires the full dependency graph once and shares it between the api and
// worker binaries.
type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	ChatUC    ports.ChatService
	Retriever ports.ContextRetriever
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	ExpansionCache *usecase.ExpansionCache

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	analytics := postgres.NewAnalyticsRepository(db)
	if err := analytics.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure analytics schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	intents := ollama.NewIntentClassifier(ollamaClient)
	expansionGen := ollama.NewExpansionGenerator(ollamaClient)
	answerGen := ollama.NewAnswerGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(
		plaintext.NewExtractor(storage),
		pdfextractor.NewExtractor(storage),
	)

	expansionCache := usecase.NewExpansionCache(cfg.Retrieval.ExpansionCacheTTL, cfg.Retrieval.ExpansionCacheCapacity)
	expander := usecase.NewQueryExpander(expansionGen, cfg.ExpansionModels, expansionCache, cfg.Retrieval.ExpansionMaxRetries)

	retrievalUC := usecase.NewRetrievalUseCase(
		embedder,
		vectorDB,
		vectorDB,
		intents,
		expander,
		analytics,
		cfg.Retrieval,
	)
	chatUC := usecase.NewChatUseCase(retrievalUC, answerGen)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, chunker, embedder, vectorDB)

	return &App{
		Config: cfg,

		Queue:     queue,
		Repo:      repo,
		ChatUC:    chatUC,
		Retriever: retrievalUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		ExpansionCache: expansionCache,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
