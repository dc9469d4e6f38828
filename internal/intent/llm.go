package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hivemindhq/hivebot/internal/config"
)

// LLM is the model-backed strategy. It calls an OpenAI-compatible
// chat-completions endpoint with a structured prompt and parses the
// reply defensively: any network, HTTP, or parse failure yields a zero
// Result instead of an error.
type LLM struct {
	apiBase       string
	apiKey        string
	model         string
	defaultIntent string
	intents       []config.IntentSpec
	client        *http.Client
}

// NewLLM creates the LLM strategy from configuration.
func NewLLM(cfg config.ClassifierConfig) *LLM {
	base := cfg.LLM.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &LLM{
		apiBase:       strings.TrimRight(base, "/"),
		apiKey:        cfg.LLM.APIKey,
		model:         cfg.LLM.Model,
		defaultIntent: cfg.DefaultIntent,
		intents:       cfg.Intents,
		client:        &http.Client{Timeout: cfg.LLM.Timeout.Std(30 * time.Second)},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// rawResult is the loose shape the model is asked to return.
type rawResult struct {
	PrimaryIntent    *string  `json:"primary_intent"`
	Confidence       *float64 `json:"confidence"`
	PrimaryWorkspace *string  `json:"primary_workspace"`
	RankedIntents    []Scored `json:"ranked_intents"`
	RankedWorkspaces []Scored `json:"ranked_workspaces"`
}

// Classify implements Classifier.
func (l *LLM) Classify(ctx context.Context, query string, allowedIntents, allowedWorkspaces []string) Result {
	content, err := l.complete(ctx, l.buildPrompt(query, allowedIntents, allowedWorkspaces))
	if err != nil {
		slog.Warn("intent classification call failed", "error", err)
		return Result{}
	}
	return ParseModelResult(content, allowedIntents, l.defaultIntent)
}

func (l *LLM) buildPrompt(query string, allowedIntents, allowedWorkspaces []string) string {
	var b strings.Builder
	b.WriteString("You classify a user query into one intent and suggest knowledge workspaces.\n\n")

	b.WriteString("Allowed intents:\n")
	for _, name := range allowedIntents {
		spec := l.intentSpec(name)
		fmt.Fprintf(&b, "- %s", name)
		if spec.Description != "" {
			fmt.Fprintf(&b, ": %s", spec.Description)
		}
		b.WriteString("\n")
		for _, ex := range spec.Examples {
			fmt.Fprintf(&b, "  example: %q\n", ex)
		}
	}

	b.WriteString("\nAllowed workspaces:\n")
	for _, ws := range allowedWorkspaces {
		fmt.Fprintf(&b, "- %s\n", ws)
	}

	b.WriteString("\nRespond with a single JSON object and nothing else, using exactly these keys:\n")
	b.WriteString(`{"primary_intent": string, "confidence": number between 0 and 1, "primary_workspace": string, "ranked_intents": [{"name": string, "confidence": number}], "ranked_workspaces": [{"name": string, "confidence": number}]}`)
	b.WriteString("\n\nQuery:\n")
	b.WriteString(query)
	return b.String()
}

func (l *LLM) intentSpec(name string) config.IntentSpec {
	for _, s := range l.intents {
		if s.Name == name {
			return s
		}
	}
	return config.IntentSpec{Name: name}
}

func (l *LLM) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       l.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiBase+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("classifier call: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return cr.Choices[0].Message.Content, nil
}

// ParseModelResult turns raw model output into a Result. It strips
// markdown fences, tolerates missing fields, clamps confidence into
// [0,1], rejects intents outside allowedIntents in favor of
// defaultIntent, and backfills the ranked lists from the primary fields.
// Malformed input yields a zero Result.
func ParseModelResult(content string, allowedIntents []string, defaultIntent string) Result {
	content = stripFences(content)
	if content == "" {
		return Result{}
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		slog.Warn("classifier returned malformed json", "error", err)
		return Result{}
	}

	var res Result
	if raw.PrimaryIntent != nil {
		res.PrimaryIntent = coerceIntent(*raw.PrimaryIntent, allowedIntents, defaultIntent)
	}
	if raw.Confidence != nil {
		res.Confidence = clamp(*raw.Confidence)
	}
	if raw.PrimaryWorkspace != nil {
		res.PrimaryWorkspace = *raw.PrimaryWorkspace
	}

	res.RankedIntents = clampAll(raw.RankedIntents)
	res.RankedWorkspaces = clampAll(raw.RankedWorkspaces)

	if len(res.RankedIntents) == 0 && res.PrimaryIntent != "" {
		res.RankedIntents = []Scored{{Name: res.PrimaryIntent, Confidence: res.Confidence}}
	}
	if len(res.RankedWorkspaces) == 0 && res.PrimaryWorkspace != "" {
		res.RankedWorkspaces = []Scored{{Name: res.PrimaryWorkspace, Confidence: res.Confidence}}
	}
	return res
}

// coerceIntent substitutes def for any intent outside the allowed set.
// An empty allowed set accepts anything.
func coerceIntent(name string, allowed []string, def string) string {
	if name == "" {
		return ""
	}
	if len(allowed) == 0 {
		return name
	}
	for _, a := range allowed {
		if a == name {
			return name
		}
	}
	slog.Warn("classifier returned unknown intent, using default", "intent", name, "default", def)
	return def
}

func clampAll(list []Scored) []Scored {
	out := make([]Scored, 0, len(list))
	for _, s := range list {
		if s.Name == "" {
			continue
		}
		out = append(out, Scored{Name: s.Name, Confidence: clamp(s.Confidence)})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.HasPrefix(s, "{") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
