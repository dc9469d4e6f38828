// Package matcher scores free text against keyword-to-workspace maps.
package matcher

import (
	"log/slog"
	"strings"
)

// BestMatch returns the workspace whose phrases occur most often in text.
// Occurrences are counted case-insensitively and overlapping. A zero
// maximum or a tie at the maximum returns def.
func BestMatch(text string, keywords map[string][]string, def string) string {
	if len(keywords) == 0 {
		return def
	}

	lower := strings.ToLower(text)

	best := def
	bestWeight := 0
	tied := false

	for workspace, phrases := range keywords {
		if phrases == nil {
			slog.Warn("keyword map entry has no phrase list, skipping", "workspace", workspace)
			continue
		}
		weight := 0
		for _, phrase := range phrases {
			weight += countOccurrences(lower, strings.ToLower(phrase))
		}
		switch {
		case weight > bestWeight:
			best = workspace
			bestWeight = weight
			tied = false
		case weight == bestWeight && weight > 0:
			tied = true
		}
	}

	if bestWeight == 0 || tied {
		return def
	}
	return best
}

// countOccurrences counts overlapping occurrences of phrase in s.
// Both arguments must already be lower-cased.
func countOccurrences(s, phrase string) int {
	if phrase == "" {
		return 0
	}
	count := 0
	for i := 0; ; {
		idx := strings.Index(s[i:], phrase)
		if idx < 0 {
			return count
		}
		count++
		i += idx + 1
	}
}
