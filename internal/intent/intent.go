// Package intent classifies free-text queries into a small intent
// taxonomy plus ranked workspace suggestions.
package intent

import (
	"context"
	"log/slog"

	"github.com/hivemindhq/hivebot/internal/config"
)

// Scored is a (name, confidence) pair in a ranked list.
type Scored struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Result is the classifier output. A zero Result (no intent, confidence
// 0) is the safe default every failure path degrades to.
type Result struct {
	PrimaryIntent    string
	Confidence       float64
	PrimaryWorkspace string
	RankedIntents    []Scored
	RankedWorkspaces []Scored
}

// Classifier maps a query to a Result. Implementations never return an
// error: classification failure degrades to a zero Result so it can
// never abort a dispatch.
type Classifier interface {
	Classify(ctx context.Context, query string, allowedIntents, allowedWorkspaces []string) Result
}

// New selects the classifier strategy from configuration. An unknown
// strategy key falls back to the heuristic with a warning.
func New(cfg config.ClassifierConfig, h *Heuristic) Classifier {
	switch cfg.Strategy {
	case "", "heuristic":
		return h
	case "llm":
		if cfg.LLM.APIKey == "" {
			slog.Warn("llm classifier selected but no api key configured, using heuristic")
			return h
		}
		return NewLLM(cfg)
	default:
		slog.Warn("unknown classifier strategy, using heuristic", "strategy", cfg.Strategy)
		return h
	}
}

// clamp limits a confidence to [0,1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
