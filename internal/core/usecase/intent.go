package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

// Bare greetings, acknowledgements and thanks never need retrieval; they are
// answered without spending a classifier call.
var trivialQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(halo|hallo|hai|hei|hi|hey|hello|woi)[\s.!?]*$`),
	regexp.MustCompile(`^(p|ping|tes|test)[\s.!?]*$`),
	regexp.MustCompile(`^selamat\s+(pagi|siang|sore|malam)[\s.!?]*$`),
	regexp.MustCompile(`^assalamu'?alaikum[\s.!?]*(wr\.?\s*wb\.?)?$`),
	regexp.MustCompile(`^(terima\s*kasih|terimakasih|makasih|makasi|thanks|thank\s+you|thx|tq)[\s.!?]*(banyak|ya|yaa|pak|bu)?[\s.!?]*$`),
	regexp.MustCompile(`^(ok|oke|okay|okey|sip|siap|baik|iya|ya|yoi|mantap|noted)[\s.!?]*$`),
	regexp.MustCompile(`^(sama-sama|sama2|samasama)[\s.!?]*$`),
}

func isTrivialQuery(query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return true
	}
	for _, pattern := range trivialQueryPatterns {
		if pattern.MatchString(normalized) {
			return true
		}
	}
	return false
}

// classifyIntent gates retrieval: trivial queries skip without a delegated
// call; otherwise the micro-classifier decides. Classifier failure fails open
// to optional — intent gating must never break retrieval.
func (uc *RetrievalUseCase) classifyIntent(ctx context.Context, query, sessionContext string) domain.QueryIntentResult {
	if isTrivialQuery(query) {
		return domain.QueryIntentResult{Intent: domain.IntentSkip}
	}
	if uc.intents == nil {
		return domain.QueryIntentResult{Intent: domain.IntentOptional}
	}

	decision, err := uc.intents.ClassifyRAGIntent(ctx, query, sessionContext)
	if err != nil {
		slog.Warn("intent_classify_failed", "error", err)
		return domain.QueryIntentResult{Intent: domain.IntentOptional}
	}

	if decision.Confidence >= uc.tuning.IntentMinConfidence {
		switch decision.Decision {
		case domain.DecisionRAGRequired:
			return domain.QueryIntentResult{Intent: domain.IntentRequired, Categories: decision.Categories}
		case domain.DecisionRAGSkip:
			return domain.QueryIntentResult{Intent: domain.IntentSkip}
		}
	}
	return domain.QueryIntentResult{Intent: domain.IntentOptional, Categories: decision.Categories}
}
