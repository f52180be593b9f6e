package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
	"github.com/desadigital/citizen-assistant/internal/core/ports"
)

// RetrievalUseCase runs the full retrieval-and-ranking pipeline:
// intent gate → query expansion → hybrid retrieval → RRF re-ranking →
// threshold filter → dedup/conflict detection → context assembly →
// confidence estimation.
//
// The public contract is fail-safe: RetrieveContext converts every upstream
// failure into an empty, well-formed result instead of an error, and the
// caller falls back to general-knowledge answering.
type RetrievalUseCase struct {
	embedder ports.Embedder
	vectors  ports.VectorSearcher
	hybrid   ports.HybridSearcher
	intents  ports.IntentClassifier
	expander *QueryExpander
	recorder ports.RetrievalRecorder
	tuning   domain.RetrievalTuning
}

func NewRetrievalUseCase(
	embedder ports.Embedder,
	vectors ports.VectorSearcher,
	hybrid ports.HybridSearcher,
	intents ports.IntentClassifier,
	expander *QueryExpander,
	recorder ports.RetrievalRecorder,
	tuning domain.RetrievalTuning,
) *RetrievalUseCase {
	return &RetrievalUseCase{
		embedder: embedder,
		vectors:  vectors,
		hybrid:   hybrid,
		intents:  intents,
		expander: expander,
		recorder: recorder,
		tuning:   tuning.Normalize(),
	}
}

func (uc *RetrievalUseCase) RetrieveContext(ctx context.Context, query string, opts domain.SearchOptions) domain.RAGResult {
	start := time.Now()
	query = strings.TrimSpace(query)
	opts = opts.Normalize(uc.tuning)

	if query == "" {
		return uc.emptyResult(start, domain.IntentSkip)
	}

	intent := uc.classifyIntent(ctx, query, "")
	if intent.Intent == domain.IntentSkip {
		return uc.emptyResult(start, domain.IntentSkip)
	}
	if len(opts.Categories) == 0 {
		opts.Categories = intent.Categories
	}

	searchQuery := query
	if !opts.DisableExpansion && uc.expander != nil {
		searchQuery = uc.expander.Expand(ctx, query)
	}

	adjusted := adjustedMinScore(opts.MinScore, intent.Intent, uc.tuning)

	candidates, err := uc.fetchCandidates(ctx, searchQuery, opts, adjusted)
	if err != nil {
		slog.Error("retrieval_failed",
			"error", err,
			"village_id", opts.VillageID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return uc.emptyResult(start, intent.Intent)
	}
	if len(candidates) == 0 {
		return uc.emptyResult(start, intent.Intent)
	}

	// Keyword matching runs against the original query; expansion terms
	// would dilute the phrase and bigram bonuses.
	ranked := rerankRRF(candidates, query, opts.TopK, uc.tuning)
	ranked = filterByScore(ranked, adjusted)

	deduped := dedupeCandidates(ranked, uc.tuning)
	contextString, conflicts := assembleContext(deduped, uc.tuning)
	confidence := estimateConfidence(deduped, uc.tuning)

	uc.recordRetrievals(deduped)

	return domain.RAGResult{
		RelevantChunks: deduped,
		ContextString:  contextString,
		TotalResults:   len(deduped),
		SearchTimeMs:   time.Since(start).Milliseconds(),
		Confidence:     confidence,
		Conflicts:      conflicts,
		Intent:         intent.Intent,
	}
}

// ShouldRetrieveContext reuses the intent gate without running retrieval.
func (uc *RetrievalUseCase) ShouldRetrieveContext(ctx context.Context, query string) bool {
	return uc.classifyIntent(ctx, strings.TrimSpace(query), "").Intent != domain.IntentSkip
}

func (uc *RetrievalUseCase) fetchCandidates(
	ctx context.Context,
	searchQuery string,
	opts domain.SearchOptions,
	adjustedScore float64,
) ([]domain.SearchCandidate, error) {
	vector, err := uc.embedder.EmbedQuery(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, nil
	}

	q := domain.VectorQuery{
		Categories:  opts.Categories,
		SourceTypes: opts.SourceTypes,
		VillageID:   opts.VillageID,
	}

	if !opts.DisableHybrid && uc.hybrid != nil {
		q.TopK = opts.TopK
		q.MinScore = adjustedScore
		out, err := uc.hybrid.HybridSearch(ctx, searchQuery, vector, q)
		if err != nil {
			return nil, fmt.Errorf("hybrid search: %w", err)
		}
		return out, nil
	}

	// Pure vector fallback: wider fetch at a relaxed threshold, tightened
	// afterwards by the re-ranker and the adjusted threshold.
	q.TopK = opts.TopK * 2
	q.MinScore = opts.MinScore * 0.8
	out, err := uc.vectors.Search(ctx, vector, q)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return out, nil
}

// adjustedMinScore relaxes the score bar by 10% when retrieval is merely
// optional, but never below the hard floor that keeps threshold cascades
// from letting noise through.
func adjustedMinScore(minScore float64, intent domain.QueryIntent, t domain.RetrievalTuning) float64 {
	adjusted := minScore
	if intent != domain.IntentRequired {
		adjusted = minScore * t.OptionalRelief
	}
	return math.Max(adjusted, t.ScoreFloor)
}

func filterByScore(ranked []domain.RankedCandidate, minScore float64) []domain.RankedCandidate {
	out := ranked[:0:len(ranked)]
	for _, c := range ranked {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	return out
}

// recordRetrievals is fire-and-forget analytics; failures never touch the
// request path.
func (uc *RetrievalUseCase) recordRetrievals(chunks []domain.DedupedCandidate) {
	if uc.recorder == nil || len(chunks) == 0 {
		return
	}
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := uc.recorder.RecordBatchRetrievals(ctx, ids); err != nil {
			slog.Warn("record_retrievals_failed", "error", err, "count", len(ids))
		}
	}()
}

func (uc *RetrievalUseCase) emptyResult(start time.Time, intent domain.QueryIntent) domain.RAGResult {
	return domain.RAGResult{
		RelevantChunks: []domain.DedupedCandidate{},
		SearchTimeMs:   time.Since(start).Milliseconds(),
		Confidence:     estimateConfidence(nil, uc.tuning),
		Conflicts:      nil,
		Intent:         intent,
	}
}
