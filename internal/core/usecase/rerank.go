package usecase

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

// rerankRRF fuses the vector rank (input order, already similarity-sorted)
// with a keyword rank via reciprocal-rank fusion. The vector score stays the
// dominant signal: the fused rank only scales it by a bounded multiplier, so
// keyword overlap breaks ties but cannot promote a semantic mismatch to the
// top.
func rerankRRF(candidates []domain.SearchCandidate, query string, topK int, t domain.RetrievalTuning) []domain.RankedCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	keywordScores := make([]float64, len(candidates))
	for i, c := range candidates {
		keywordScores[i] = keywordScore(query, c.Content, t)
	}

	// Keyword rank: position when sorted by keyword score descending.
	byKeyword := make([]int, len(candidates))
	for i := range byKeyword {
		byKeyword[i] = i
	}
	sort.SliceStable(byKeyword, func(a, b int) bool {
		return keywordScores[byKeyword[a]] > keywordScores[byKeyword[b]]
	})
	keywordRank := make([]int, len(candidates))
	for rank, idx := range byKeyword {
		keywordRank[idx] = rank + 1
	}

	out := make([]domain.RankedCandidate, 0, len(candidates))
	for i, c := range candidates {
		vectorRank := i + 1
		rrf := t.VectorWeight/float64(t.RRFK+vectorRank) + t.KeywordWeight/float64(t.RRFK+keywordRank[i])

		boost := 0.0
		if c.SourceType == domain.SourceKnowledge {
			boost = t.KnowledgeBoost
		}

		ranked := domain.RankedCandidate{SearchCandidate: c, VectorScore: c.Score}
		ranked.Score = math.Min(1.0, c.Score*(1.0+rrf*t.RRFBoost)+boost)
		out = append(out, ranked)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	return out[:topK]
}

// keywordScore sums log(1+count) per significant query term, plus a flat
// bonus for an exact full-phrase match and a smaller one per matching
// consecutive query bigram.
func keywordScore(query, content string, t domain.RetrievalTuning) float64 {
	loweredQuery := strings.ToLower(strings.TrimSpace(query))
	loweredContent := strings.ToLower(content)
	if loweredQuery == "" || loweredContent == "" {
		return 0
	}

	score := 0.0
	for _, term := range strings.Fields(loweredQuery) {
		if len([]rune(term)) <= 2 {
			continue
		}
		// A term that cannot form a pattern is skipped, not fatal.
		re, err := regexp.Compile(regexp.QuoteMeta(term))
		if err != nil {
			continue
		}
		if count := len(re.FindAllStringIndex(loweredContent, -1)); count > 0 {
			score += math.Log(1 + float64(count))
		}
	}

	if strings.Contains(loweredContent, loweredQuery) {
		score += t.PhraseBonus
	}

	terms := strings.Fields(loweredQuery)
	for i := 0; i+1 < len(terms); i++ {
		bigram := terms[i] + " " + terms[i+1]
		if strings.Contains(loweredContent, bigram) {
			score += t.BigramBonus
		}
	}

	return score
}
