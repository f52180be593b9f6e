package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
	"github.com/desadigital/citizen-assistant/internal/core/ports"
)

// ChatUseCase answers one citizen question: spam guard, retrieval, then a
// grounded generation call. Single-turn by design; channel integrations own
// any session state.
type ChatUseCase struct {
	retriever ports.ContextRetriever
	generator ports.AnswerGenerator
}

func NewChatUseCase(retriever ports.ContextRetriever, generator ports.AnswerGenerator) *ChatUseCase {
	return &ChatUseCase{
		retriever: retriever,
		generator: generator,
	}
}

func (uc *ChatUseCase) Answer(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	if req.Query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat answer", errors.New("query is required"))
	}
	if IsSpamMessage(req.Query) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat answer", errors.New("message rejected by spam guard"))
	}

	opts := req.Options
	if opts.VillageID == "" {
		opts.VillageID = req.VillageID
	}

	result := uc.retriever.RetrieveContext(ctx, req.Query, opts)

	text, err := uc.generator.GenerateAnswer(ctx, req.Query, result)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.ChatAnswer{
		Text:       text,
		Confidence: result.Confidence,
		Sources:    result.RelevantChunks,
		Conflicts:  result.Conflicts,
		Intent:     result.Intent,
		Grounded:   !result.Confidence.SuggestFallback && len(result.RelevantChunks) > 0,
	}, nil
}
