package usecase

import (
	"math"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

// estimateConfidence derives a single confidence label from the score
// distribution of the final candidate set: top score dominates, backed by the
// mean, the candidate count (saturating at 3) and a variance-derived
// consistency term.
func estimateConfidence(chunks []domain.DedupedCandidate, t domain.RetrievalTuning) domain.Confidence {
	if len(chunks) == 0 {
		return domain.Confidence{
			Level:           domain.ConfidenceNone,
			Score:           0,
			Reason:          "No relevant knowledge found",
			SuggestFallback: true,
		}
	}

	top := 0.0
	sum := 0.0
	for _, c := range chunks {
		if c.Score > top {
			top = c.Score
		}
		sum += c.Score
	}
	avg := sum / float64(len(chunks))

	variance := 0.0
	for _, c := range chunks {
		d := c.Score - avg
		variance += d * d
	}
	variance /= float64(len(chunks))
	consistency := 1.0 - math.Min(variance*2.0, 1.0)

	countTerm := math.Min(float64(len(chunks))/3.0, 1.0)
	composite := t.TopWeight*top + t.AvgWeight*avg + t.CountWeight*countTerm + t.ConsistencyWeight*consistency

	switch {
	case composite >= 0.8 && top >= 0.85:
		return domain.Confidence{
			Level:  domain.ConfidenceHigh,
			Score:  composite,
			Reason: "Strong match with consistent supporting results",
		}
	case composite >= 0.6 && top >= 0.7:
		return domain.Confidence{
			Level:  domain.ConfidenceMedium,
			Score:  composite,
			Reason: "Good match, answer should be grounded on retrieved context",
		}
	case composite >= 0.4 || top >= 0.6:
		return domain.Confidence{
			Level:           domain.ConfidenceLow,
			Score:           composite,
			Reason:          "Weak match, verify against general knowledge",
			SuggestFallback: true,
		}
	default:
		return domain.Confidence{
			Level:           domain.ConfidenceNone,
			Score:           composite,
			Reason:          "Retrieved results are not trustworthy enough",
			SuggestFallback: true,
		}
	}
}
