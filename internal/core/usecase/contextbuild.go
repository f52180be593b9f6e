package usecase

import (
	"fmt"
	"strings"

	"github.com/desadigital/citizen-assistant/internal/core/domain"
)

const conflictMarker = "⚠️ KONFLIK DATA"

// assembleContext renders the deduplicated result set into a length-bounded
// text block for prompt injection. Entries are emitted whole: one that would
// push the total past MaxContextChars is dropped along with everything after
// it, replaced by a truncation notice.
func assembleContext(chunks []domain.DedupedCandidate, t domain.RetrievalTuning) (string, []domain.ConflictInfo) {
	var b strings.Builder
	b.WriteString("=== INFORMASI DESA/KELURAHAN ===\n")

	groups := conflictGroups(chunks)
	if len(groups) > 0 {
		fmt.Fprintf(&b, "%s: %d kelompok informasi saling bertentangan. Sampaikan semua versi kepada warga, jangan memilih salah satu.\n", conflictMarker, len(groups))
	}
	b.WriteString("\n")

	written := 0
	markedGroups := make(map[int]bool, len(groups))
	for i, chunk := range chunks {
		entry := renderEntry(written+1, chunk, groups, markedGroups, t)
		if runeLen(b.String())+runeLen(entry) > t.MaxContextChars {
			remaining := len(chunks) - i
			fmt.Fprintf(&b, "... %d entri lain dipotong karena batas konteks.\n", remaining)
			break
		}
		b.WriteString(entry)
		written++
	}

	return b.String(), collectConflicts(chunks, groups)
}

func renderEntry(n int, chunk domain.DedupedCandidate, groups map[int][]domain.DedupedCandidate, marked map[int]bool, t domain.RetrievalTuning) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. [%s]\n", n, sourceLabel(chunk))

	if chunk.HasConflict && !marked[chunk.ConflictGroup] {
		marked[chunk.ConflictGroup] = true
		members := groups[chunk.ConflictGroup]
		labels := make([]string, 0, len(members))
		for _, m := range members {
			labels = append(labels, m.Source)
		}
		fmt.Fprintf(&b, "%s (grup %d): bandingkan %s\n", conflictMarker, chunk.ConflictGroup, strings.Join(labels, " vs "))
	}

	b.WriteString(compressSnippet(chunk.Content, t.SnippetChars))
	b.WriteString("\n\n")
	return b.String()
}

func sourceLabel(chunk domain.DedupedCandidate) string {
	if chunk.SourceType == domain.SourceKnowledge {
		if chunk.Category != "" {
			return "Pengetahuan: " + chunk.Category
		}
		return "Pengetahuan"
	}
	if chunk.Section != "" {
		return "Dokumen: " + chunk.Section
	}
	return "Dokumen: " + chunk.Source
}

// compressSnippet bounds content to limit runes, preferring the last sentence
// boundary that fits over a hard cut.
func compressSnippet(content string, limit int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}

	head := runes[:limit]
	cut := -1
	for i, r := range head {
		if r == '.' || r == '!' || r == '?' {
			cut = i
		}
	}
	if cut > 0 {
		return strings.TrimSpace(string(head[:cut+1]))
	}
	return strings.TrimSpace(string(head)) + "..."
}

func conflictGroups(chunks []domain.DedupedCandidate) map[int][]domain.DedupedCandidate {
	groups := make(map[int][]domain.DedupedCandidate)
	for _, c := range chunks {
		if c.HasConflict {
			groups[c.ConflictGroup] = append(groups[c.ConflictGroup], c)
		}
	}
	return groups
}

// collectConflicts reports one ConflictInfo per group, built from its first
// two members in score order.
func collectConflicts(chunks []domain.DedupedCandidate, groups map[int][]domain.DedupedCandidate) []domain.ConflictInfo {
	if len(groups) == 0 {
		return nil
	}
	out := make([]domain.ConflictInfo, 0, len(groups))
	seen := make(map[int]bool, len(groups))
	for _, c := range chunks {
		if !c.HasConflict || seen[c.ConflictGroup] {
			continue
		}
		members := groups[c.ConflictGroup]
		if len(members) < 2 {
			continue
		}
		seen[c.ConflictGroup] = true
		out = append(out, domain.ConflictInfo{
			Source1:         members[0].Source,
			Source2:         members[1].Source,
			ContentSnippet1: compressSnippet(members[0].Content, 120),
			ContentSnippet2: compressSnippet(members[1].Content, 120),
		})
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
