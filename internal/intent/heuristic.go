package intent

import (
	"context"
	"strings"

	"github.com/hivemindhq/hivebot/internal/matcher"
)

// Heuristic is the local, LLM-free strategy. It never produces an
// intent; it only suggests a workspace, by explicit #workspace token,
// then keyword matching (dynamic map before static), then the fallback.
type Heuristic struct {
	static   map[string][]string
	dynamic  *matcher.DynamicKeywords
	fallback string
}

// NewHeuristic creates the heuristic strategy. dynamic may be nil.
func NewHeuristic(static map[string][]string, dynamic *matcher.DynamicKeywords, fallback string) *Heuristic {
	return &Heuristic{static: static, dynamic: dynamic, fallback: fallback}
}

// Classify implements Classifier.
func (h *Heuristic) Classify(ctx context.Context, query string, allowedIntents, allowedWorkspaces []string) Result {
	ws := h.suggestWorkspace(ctx, query, allowedWorkspaces)
	res := Result{PrimaryWorkspace: ws}
	if ws != "" {
		res.RankedWorkspaces = []Scored{{Name: ws, Confidence: 1}}
	}
	return res
}

func (h *Heuristic) suggestWorkspace(ctx context.Context, query string, allowedWorkspaces []string) string {
	if tag := HashTagToken(query); tag != "" {
		return tag
	}

	if dyn := h.dynamic.Map(ctx, allowedWorkspaces); dyn != nil {
		if ws := matcher.BestMatch(query, dyn, ""); ws != "" {
			return ws
		}
	}
	if ws := matcher.BestMatch(query, h.static, ""); ws != "" {
		return ws
	}
	return h.fallback
}

// HashTagToken extracts an explicit #workspace token from text, skipping
// the delete-last-message directive. Returns "" when no token is present.
func HashTagToken(text string) string {
	for _, field := range strings.Fields(text) {
		if !strings.HasPrefix(field, "#") || len(field) < 2 {
			continue
		}
		tag := strings.Trim(field[1:], ".,!?:;")
		if tag == "" || tag == "delete_last_message" {
			continue
		}
		// "#42" is an issue/PR reference, not a workspace.
		if isNumeric(tag) {
			continue
		}
		return tag
	}
	return ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
