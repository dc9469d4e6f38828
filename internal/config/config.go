package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the hivebot gateway.
type Config struct {
	Slack      SlackConfig      `json:"slack"`
	GitHub     GitHubConfig     `json:"github"`
	Knowledge  KnowledgeConfig  `json:"knowledge"`
	Classifier ClassifierConfig `json:"classifier"`
	Workspaces WorkspacesConfig `json:"workspaces"`
	Database   DatabaseConfig   `json:"database,omitempty"`
	Redis      RedisConfig      `json:"redis,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
}

// SlackConfig configures the Slack channel.
// Tokens are never read from the config file, only from the environment.
type SlackConfig struct {
	BotToken      string `json:"-"` // from env HIVEBOT_SLACK_BOT_TOKEN only
	AppToken      string `json:"-"` // from env HIVEBOT_SLACK_APP_TOKEN only
	CommandPrefix string `json:"command_prefix,omitempty"`
	Debug         bool   `json:"debug,omitempty"`
}

// GitHubConfig configures the GitHub collaborator.
type GitHubConfig struct {
	Token        string `json:"-"` // from env HIVEBOT_GITHUB_TOKEN only
	DefaultOwner string `json:"default_owner,omitempty"`
	// RepoPrefix is the conventional namespace token prepended to bare
	// repo names (e.g. "hive-" turns "widgets" into "hive-widgets").
	RepoPrefix string `json:"repo_prefix,omitempty"`
	// RepoAliases maps short aliases to full repository names (e.g. "gf" → "goldfinger").
	RepoAliases map[string]string `json:"repo_aliases,omitempty"`
	// AliasOwners overrides the owner for a specific alias.
	AliasOwners map[string]string `json:"alias_owners,omitempty"`
}

// Enabled reports whether the GitHub integration is usable.
func (g GitHubConfig) Enabled() bool { return g.Token != "" }

// KnowledgeConfig configures the knowledge-backend API client.
type KnowledgeConfig struct {
	BaseURL     string   `json:"base_url"`
	APIKey      string   `json:"-"`                   // from env HIVEBOT_KNOWLEDGE_API_KEY only
	ChatMode    string   `json:"chat_mode,omitempty"` // "chat" or "query"
	ChatTimeout Duration `json:"chat_timeout,omitempty"`
	MetaTimeout Duration `json:"meta_timeout,omitempty"`
}

// IntentSpec describes one intent for the LLM classifier prompt.
type IntentSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
}

// ClassifierConfig selects and configures the intent classifier strategy.
type ClassifierConfig struct {
	Strategy      string       `json:"strategy,omitempty"` // "heuristic" (default) or "llm"
	DefaultIntent string       `json:"default_intent,omitempty"`
	Intents       []IntentSpec `json:"intents,omitempty"`
	LLM           LLMConfig    `json:"llm,omitempty"`
}

// LLMConfig configures the chat-completions endpoint used by the LLM classifier.
type LLMConfig struct {
	BaseURL string   `json:"base_url,omitempty"`
	APIKey  string   `json:"-"` // from env HIVEBOT_LLM_API_KEY only
	Model   string   `json:"model,omitempty"`
	Timeout Duration `json:"timeout,omitempty"`
}

// WorkspacesConfig configures workspace resolution and keyword matching.
type WorkspacesConfig struct {
	Fallback string `json:"fallback"`
	// Users maps a Slack user ID to a preferred workspace.
	Users map[string]string `json:"users,omitempty"`
	// Channels maps a Slack channel ID to a preferred workspace.
	Channels map[string]string `json:"channels,omitempty"`
	// Keywords is the static hand-curated keyword map: workspace → phrases.
	Keywords map[string][]string `json:"keywords,omitempty"`

	DirectoryTTL Duration `json:"directory_ttl,omitempty"` // process-local cache TTL
	RedisTTL     Duration `json:"redis_ttl,omitempty"`     // distributed cache TTL

	DynamicKeywords DynamicKeywordsConfig `json:"dynamic_keywords,omitempty"`
}

// DynamicKeywordsConfig configures the repo-metadata keyword map builder.
type DynamicKeywordsConfig struct {
	Enabled bool     `json:"enabled,omitempty"`
	TTL     Duration `json:"ttl,omitempty"`
}

// DatabaseConfig configures Postgres. The DSN comes from
// HIVEBOT_POSTGRES_DSN only, never from the config file.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
}

// RedisConfig configures the dedupe/cache store.
// URL is env-only (it may carry a password).
type RedisConfig struct {
	URL       string   `json:"-"` // from env HIVEBOT_REDIS_URL only
	DedupeTTL Duration `json:"dedupe_ttl,omitempty"`
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// Duration is a time.Duration that unmarshals from JSON strings like "90s".
// Bare numbers are treated as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		parsed, err := time.ParseDuration(s[1 : len(s)-1])
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if _, err := fmt.Sscan(s, &secs); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration, or def when unset.
func (d Duration) Std(def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return time.Duration(d)
}
