package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Slack: SlackConfig{
			CommandPrefix: "gh>",
		},
		GitHub: GitHubConfig{
			DefaultOwner: "hivemindhq",
		},
		Knowledge: KnowledgeConfig{
			ChatMode: "chat",
		},
		Classifier: ClassifierConfig{
			Strategy:      "heuristic",
			DefaultIntent: "general_question",
			Intents: []IntentSpec{
				{
					Name:        "release_info",
					Description: "asking about the latest release or version of a repository",
					Examples:    []string{"what's the latest release of goldfinger?"},
				},
				{
					Name:        "pr_review",
					Description: "asking for a review of a specific pull request",
					Examples:    []string{"can you review acme/widgets#42?"},
				},
				{
					Name:        "issue_analysis",
					Description: "asking to analyze, summarize, or explain a specific issue",
					Examples:    []string{"summarize issue #17 for me"},
				},
				{
					Name:        "github_api",
					Description: "asking for raw repository or organization data from the GitHub API",
					Examples:    []string{"list the open milestones in acme/widgets"},
				},
				{
					Name:        "general_question",
					Description: "any other question, answered from the knowledge base",
					Examples:    []string{"how do I rotate the signing keys?"},
				},
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "hivebot",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults + env are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; secrets are env-only.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("HIVEBOT_SLACK_BOT_TOKEN", &c.Slack.BotToken)
	envStr("HIVEBOT_SLACK_APP_TOKEN", &c.Slack.AppToken)
	envStr("HIVEBOT_COMMAND_PREFIX", &c.Slack.CommandPrefix)

	envStr("HIVEBOT_GITHUB_TOKEN", &c.GitHub.Token)
	envStr("HIVEBOT_GITHUB_OWNER", &c.GitHub.DefaultOwner)

	envStr("HIVEBOT_KNOWLEDGE_URL", &c.Knowledge.BaseURL)
	envStr("HIVEBOT_KNOWLEDGE_API_KEY", &c.Knowledge.APIKey)

	envStr("HIVEBOT_CLASSIFIER", &c.Classifier.Strategy)
	envStr("HIVEBOT_LLM_API_KEY", &c.Classifier.LLM.APIKey)
	envStr("HIVEBOT_LLM_URL", &c.Classifier.LLM.BaseURL)
	envStr("HIVEBOT_LLM_MODEL", &c.Classifier.LLM.Model)

	envStr("HIVEBOT_FALLBACK_WORKSPACE", &c.Workspaces.Fallback)

	envStr("HIVEBOT_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("HIVEBOT_REDIS_URL", &c.Redis.URL)

	envStr("HIVEBOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("HIVEBOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("HIVEBOT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("HIVEBOT_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// Validate checks for configuration that is required to start at all.
func (c *Config) Validate() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("HIVEBOT_SLACK_BOT_TOKEN is not set")
	}
	if c.Slack.AppToken == "" {
		return fmt.Errorf("HIVEBOT_SLACK_APP_TOKEN is not set (Socket Mode requires an app-level token)")
	}
	if c.Knowledge.BaseURL == "" {
		return fmt.Errorf("knowledge.base_url is not set")
	}
	if c.Workspaces.Fallback == "" {
		return fmt.Errorf("workspaces.fallback is not set")
	}
	return nil
}
