package intent

import (
	"context"
	"testing"

	"github.com/hivemindhq/hivebot/internal/config"
)

func TestHeuristicNeverProducesIntent(t *testing.T) {
	h := NewHeuristic(map[string][]string{"billing": {"invoice"}}, nil, "general")
	res := h.Classify(context.Background(), "invoice question", []string{"release_info"}, nil)
	if res.PrimaryIntent != "" {
		t.Errorf("PrimaryIntent = %q, want empty", res.PrimaryIntent)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
}

func TestHeuristicWorkspaceSuggestion(t *testing.T) {
	static := map[string][]string{
		"billing":  {"invoice", "refund"},
		"platform": {"deploy"},
	}
	h := NewHeuristic(static, nil, "general")

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"explicit hashtag wins", "what about the deploy? #billing", "billing"},
		{"numeric hashtag ignored", "look at #42 for the deploy", "platform"},
		{"delete directive ignored", "#delete_last_message", "general"},
		{"keyword match", "refund the invoice please", "billing"},
		{"no signal falls back", "hello there", "general"},
		{"trailing punctuation trimmed", "route this to #platform.", "platform"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.Classify(context.Background(), tt.query, nil, nil)
			if res.PrimaryWorkspace != tt.want {
				t.Errorf("PrimaryWorkspace = %q, want %q", res.PrimaryWorkspace, tt.want)
			}
		})
	}
}

func TestParseModelResult(t *testing.T) {
	allowed := []string{"release_info", "general_question"}

	tests := []struct {
		name          string
		content       string
		wantIntent    string
		wantConf      float64
		wantWorkspace string
	}{
		{
			"well formed",
			`{"primary_intent": "release_info", "confidence": 0.9, "primary_workspace": "platform"}`,
			"release_info", 0.9, "platform",
		},
		{
			"fenced json",
			"```json\n{\"primary_intent\": \"release_info\", \"confidence\": 0.7, \"primary_workspace\": \"billing\"}\n```",
			"release_info", 0.7, "billing",
		},
		{
			"unknown intent coerced to default",
			`{"primary_intent": "order_pizza", "confidence": 0.8}`,
			"general_question", 0.8, "",
		},
		{
			"confidence clamped high",
			`{"primary_intent": "release_info", "confidence": 3.5}`,
			"release_info", 1, "",
		},
		{
			"confidence clamped low",
			`{"primary_intent": "release_info", "confidence": -2}`,
			"release_info", 0, "",
		},
		{"malformed json", `not json at all`, "", 0, ""},
		{"empty content", "", "", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseModelResult(tt.content, allowed, "general_question")
			if res.PrimaryIntent != tt.wantIntent {
				t.Errorf("PrimaryIntent = %q, want %q", res.PrimaryIntent, tt.wantIntent)
			}
			if res.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", res.Confidence, tt.wantConf)
			}
			if res.PrimaryWorkspace != tt.wantWorkspace {
				t.Errorf("PrimaryWorkspace = %q, want %q", res.PrimaryWorkspace, tt.wantWorkspace)
			}
		})
	}
}

func TestParseModelResultBackfillsRankedLists(t *testing.T) {
	res := ParseModelResult(
		`{"primary_intent": "release_info", "confidence": 0.6, "primary_workspace": "platform"}`,
		[]string{"release_info"}, "general_question")

	if len(res.RankedIntents) != 1 || res.RankedIntents[0].Name != "release_info" {
		t.Errorf("RankedIntents = %v, want backfilled single entry", res.RankedIntents)
	}
	if len(res.RankedWorkspaces) != 1 || res.RankedWorkspaces[0].Name != "platform" {
		t.Errorf("RankedWorkspaces = %v, want backfilled single entry", res.RankedWorkspaces)
	}
}

func TestParseModelResultClampsRankedConfidences(t *testing.T) {
	res := ParseModelResult(
		`{"ranked_workspaces": [{"name": "a", "confidence": 9}, {"name": "b", "confidence": -1}]}`,
		nil, "")
	if len(res.RankedWorkspaces) != 2 {
		t.Fatalf("RankedWorkspaces = %v, want 2 entries", res.RankedWorkspaces)
	}
	if res.RankedWorkspaces[0].Confidence != 1 || res.RankedWorkspaces[1].Confidence != 0 {
		t.Errorf("ranked confidences not clamped: %v", res.RankedWorkspaces)
	}
}

func TestNewStrategySelection(t *testing.T) {
	h := NewHeuristic(nil, nil, "general")

	if c := New(config.ClassifierConfig{Strategy: "heuristic"}, h); c != Classifier(h) {
		t.Error("heuristic strategy did not select the heuristic")
	}
	if c := New(config.ClassifierConfig{Strategy: ""}, h); c != Classifier(h) {
		t.Error("empty strategy did not default to the heuristic")
	}
	if c := New(config.ClassifierConfig{Strategy: "who-knows"}, h); c != Classifier(h) {
		t.Error("unknown strategy did not fall back to the heuristic")
	}
	// LLM without an api key falls back too.
	if c := New(config.ClassifierConfig{Strategy: "llm"}, h); c != Classifier(h) {
		t.Error("llm strategy without key did not fall back to the heuristic")
	}

	llmCfg := config.ClassifierConfig{Strategy: "llm", LLM: config.LLMConfig{APIKey: "k"}}
	if _, ok := New(llmCfg, h).(*LLM); !ok {
		t.Error("llm strategy with key did not select the LLM classifier")
	}
}

func TestHashTagToken(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"ship it to #support now", "support"},
		{"acme/widgets#42 has a bug", ""},
		{"#42 alone", ""},
		{"#delete_last_message", ""},
		{"no tags here", ""},
		{"#", ""},
	}
	for _, tt := range tests {
		if got := HashTagToken(tt.text); got != tt.want {
			t.Errorf("HashTagToken(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
