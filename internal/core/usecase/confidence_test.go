package usecase

import (
	"testing"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

func dedupedWithScores(scores ...float64) []domain.DedupedCandidate {
	out := make([]domain.DedupedCandidate, 0, len(scores))
	for i, s := range scores {
		out = append(out, domain.DedupedCandidate{
			RankedCandidate: rankedCandidate(string(rune('a'+i)), "konten", s),
		})
	}
	return out
}

func TestEstimateConfidenceEmptyResultSet(t *testing.T) {
	got := estimateConfidence(nil, domain.DefaultRetrievalTuning())

	if got.Level != domain.ConfidenceNone {
		t.Fatalf("expected level none, got %s", got.Level)
	}
	if got.Score != 0 {
		t.Fatalf("expected zero score, got %v", got.Score)
	}
	if got.Reason != "No relevant knowledge found" {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
	if !got.SuggestFallback {
		t.Fatalf("empty result set must suggest the general-knowledge fallback")
	}
}

func TestEstimateConfidenceLevels(t *testing.T) {
	tuning := domain.DefaultRetrievalTuning()

	cases := []struct {
		name         string
		scores       []float64
		wantLevel    domain.ConfidenceLevel
		wantFallback bool
	}{
		// A strong top hit backed by one supporting result: the office-hours
		// query against a direct knowledge entry.
		{"high", []float64{0.91, 0.60}, domain.ConfidenceHigh, false},
		// Consistent but unspectacular matches.
		{"medium", []float64{0.75, 0.72, 0.70}, domain.ConfidenceMedium, false},
		// A single weak hit.
		{"low", []float64{0.62}, domain.ConfidenceLow, true},
		{"none", []float64{0.30}, domain.ConfidenceNone, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := estimateConfidence(dedupedWithScores(tc.scores...), tuning)
			if got.Level != tc.wantLevel {
				t.Fatalf("scores %v: level = %s, want %s (composite %v)",
					tc.scores, got.Level, tc.wantLevel, got.Score)
			}
			if got.SuggestFallback != tc.wantFallback {
				t.Fatalf("scores %v: SuggestFallback = %v, want %v",
					tc.scores, got.SuggestFallback, tc.wantFallback)
			}
			if got.Reason == "" {
				t.Fatalf("every confidence verdict carries a reason")
			}
		})
	}
}

func TestEstimateConfidenceRewardsConsistency(t *testing.T) {
	tuning := domain.DefaultRetrievalTuning()

	tight := estimateConfidence(dedupedWithScores(0.70, 0.69, 0.68), tuning)
	spread := estimateConfidence(dedupedWithScores(0.70, 0.45, 0.20), tuning)

	if tight.Score <= spread.Score {
		t.Fatalf("tight distribution should score higher: %v vs %v", tight.Score, spread.Score)
	}
}
