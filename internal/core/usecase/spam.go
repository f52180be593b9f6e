package usecase

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

const (
	spamMaxMessageRunes  = 2000
	spamMaxRepeatedRunes = 10
	spamMaxURLCount      = 3
	spamMaxTokenRepeat   = 8
)

// IsSpamMessage is a cheap guard applied before any retrieval work: flooding,
// link dumps and keyboard mashing never reach the pipeline. It is
// intentionally conservative — a false positive silences a citizen.
func IsSpamMessage(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	runes := []rune(trimmed)
	if len(runes) > spamMaxMessageRunes {
		return true
	}
	if longestRuneRun(runes) >= spamMaxRepeatedRunes {
		return true
	}
	if len(urlPattern.FindAllString(trimmed, -1)) > spamMaxURLCount {
		return true
	}
	if maxTokenRepeat(trimmed) >= spamMaxTokenRepeat {
		return true
	}
	return false
}

func longestRuneRun(runes []rune) int {
	longest, run := 0, 0
	var prev rune
	for i, r := range runes {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

func maxTokenRepeat(text string) int {
	counts := make(map[string]int)
	most := 0
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if len([]rune(token)) < 2 {
			continue
		}
		counts[token]++
		if counts[token] > most {
			most = counts[token]
		}
	}
	return most
}
