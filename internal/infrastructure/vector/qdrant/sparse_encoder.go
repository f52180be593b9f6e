package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	entrySaturationK = 1.2
	querySaturationK = 1.2
	sectionBoost     = 1.5
	maxSparseTerms   = 256
)

// encodeSparseEntry builds the lexical side of an indexed fragment. Section
// titles get a boost so entries like "Jam Operasional Kelurahan" match on
// their heading even when the body phrases things differently.
func encodeSparseEntry(text, section string) sparseVector {
	termFreq := make(map[uint32]float64, 64)
	accumulateTerms(termFreq, splitWords(text), 1.0)
	accumulateTerms(termFreq, splitWords(section), sectionBoost)
	return saturateTerms(termFreq, entrySaturationK)
}

func encodeSparseQuery(query string) sparseVector {
	termFreq := make(map[uint32]float64, 32)
	accumulateTerms(termFreq, splitWords(query), 1.0)
	return saturateTerms(termFreq, querySaturationK)
}

func accumulateTerms(dst map[uint32]float64, words []string, weight float64) {
	for _, w := range words {
		if w == "" {
			continue
		}
		dst[hashTerm(w)] += weight
	}
}

// saturateTerms applies BM25-style term-frequency saturation so a word
// repeated ten times does not dominate the vector.
func saturateTerms(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		freq := tf[idx]
		weight := (freq * (k + 1.0)) / (freq + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return sparseVector{Indices: indices, Values: values}
}

func hashTerm(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

// splitWords lowercases and splits on anything that is not a letter or digit.
// unicode classes rather than ASCII ranges keep accented Indonesian names
// intact.
func splitWords(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
