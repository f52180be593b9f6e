package usecase

import "github.com/desadigital/citizen-assistant/internal/core/domain"

// dedupeCandidates walks the score-sorted candidates and compares each one
// against everything accepted so far by token-set Jaccard similarity.
//
//   - >= DuplicateJaccard: the newcomer is a restatement of accepted content
//     and is dropped; the earlier, higher-ranked candidate wins.
//   - in [ConflictJaccard, DuplicateJaccard): same topic, different content —
//     likely contradicting source data (two documents naming different office
//     holders). Both survive, tagged with a shared conflict group so the
//     answer surfaces every version instead of silently picking one.
//   - below ConflictJaccard: unrelated, kept unflagged.
//
// O(n²) comparisons on a topK-bounded list.
func dedupeCandidates(ranked []domain.RankedCandidate, t domain.RetrievalTuning) []domain.DedupedCandidate {
	accepted := make([]domain.DedupedCandidate, 0, len(ranked))
	acceptedSets := make([]map[string]struct{}, 0, len(ranked))
	nextGroup := 1

	for _, candidate := range ranked {
		words := toTokenSet(candidate.Content)

		duplicate := false
		bestIdx := -1
		bestSim := 0.0
		for i, prev := range acceptedSets {
			sim := jaccard(words, prev)
			if sim >= t.DuplicateJaccard {
				duplicate = true
				break
			}
			if sim > bestSim {
				bestSim = sim
				bestIdx = i
			}
		}
		if duplicate {
			continue
		}

		entry := domain.DedupedCandidate{RankedCandidate: candidate}
		if bestIdx >= 0 && bestSim >= t.ConflictJaccard {
			if !accepted[bestIdx].HasConflict {
				accepted[bestIdx].HasConflict = true
				accepted[bestIdx].ConflictGroup = nextGroup
				nextGroup++
			}
			entry.HasConflict = true
			entry.ConflictGroup = accepted[bestIdx].ConflictGroup
		}

		accepted = append(accepted, entry)
		acceptedSets = append(acceptedSets, words)
	}

	return accepted
}

// rankedFromDeduped re-wraps surviving candidates so the deduplicator can be
// re-applied to its own output (used by the idempotence tests).
func rankedFromDeduped(chunks []domain.DedupedCandidate) []domain.RankedCandidate {
	out := make([]domain.RankedCandidate, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.RankedCandidate)
	}
	return out
}
