package progression

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// MatchChunk reports the first chunk contained in message, compared with
// Unicode case folding. Blank chunks never match. With no usable chunks,
// any non-blank message is accepted and chunk is empty.
func MatchChunk(message string, chunks []string) (chunk string, ok bool) {
	folder := cases.Fold()
	text := folder.String(strings.TrimSpace(message))
	if text == "" {
		return "", false
	}

	usable := 0
	for _, c := range chunks {
		needle := folder.String(strings.TrimSpace(c))
		if needle == "" {
			continue
		}
		usable++
		if strings.Contains(text, needle) {
			return c, true
		}
	}
	return "", usable == 0
}

// NearestChunk returns the chunk the message came closest to using, for a
// reply hint. Each chunk is compared against every word window of the same
// length in the message. ok is false when nothing is within range.
func NearestChunk(message string, chunks []string) (chunk string, ok bool) {
	folder := cases.Fold()
	words := strings.Fields(folder.String(message))
	if len(words) == 0 {
		return "", false
	}

	bestDist := -1
	for _, c := range chunks {
		needle := strings.Fields(folder.String(c))
		if len(needle) == 0 {
			continue
		}
		target := strings.Join(needle, " ")
		limit := distanceLimit(len([]rune(target)))

		width := min(len(needle), len(words))
		for i := 0; i+width <= len(words); i++ {
			window := strings.Join(words[i:i+width], " ")
			dist := levenshtein.ComputeDistance(window, target)
			if dist > limit {
				continue
			}
			if bestDist < 0 || dist < bestDist {
				bestDist = dist
				chunk = c
			}
		}
	}
	return chunk, bestDist >= 0
}

func distanceLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
