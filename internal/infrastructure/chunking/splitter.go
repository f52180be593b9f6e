package chunking

import "strings"

// Splitter cuts extracted document text into overlapping chunks. Within each
// window it prefers to break at a sentence end so embedded fragments stay
// readable when quoted back to a citizen.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	minStep := s.ChunkSize - s.Overlap
	if minStep <= 0 {
		minStep = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/minStep+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSentenceEnd(runes[start:end], minStep); cut > 0 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = start + minStep
		}
		start = next
	}
	return out
}

// lastSentenceEnd returns the index just past the last sentence terminator in
// window, or 0 when cutting there would leave less than minLen of content.
func lastSentenceEnd(window []rune, minLen int) int {
	for i := len(window) - 1; i >= minLen; i-- {
		switch window[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return 0
}
