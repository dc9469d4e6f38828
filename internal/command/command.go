// Package command matches structured command syntax in messages and
// slash commands, producing typed matches with fully-parsed fields.
package command

import "fmt"

// Intent names for the GitHub-backed operations. The classifier's
// taxonomy uses the same names.
const (
	IntentReleaseInfo     = "release_info"
	IntentPRReview        = "pr_review"
	IntentIssueAnalysis   = "issue_analysis"
	IntentGitHubAPI       = "github_api"
	IntentGeneralQuestion = "general_question"
)

// Match is a fully-parsed structured command. A Match is only produced
// when every required field for its kind parsed; partial parses surface
// a *UsageError instead.
type Match interface {
	kind() string
}

// ReleaseLookup fetches the latest release of a repository.
type ReleaseLookup struct {
	Owner string
	Repo  string
}

// PRReview reviews one pull request.
type PRReview struct {
	Owner     string
	Repo      string
	Number    int
	Workspace string // optional override, "" when absent
}

// IssueAnalysis analyzes, summarizes, or explains one issue.
type IssueAnalysis struct {
	Verb      string // analyze, summarize, or explain
	Owner     string
	Repo      string
	Number    int
	Workspace string // optional override, "" when absent
	Remainder string // trailing free text
}

// GenericAPI is a free-text GitHub API request.
type GenericAPI struct {
	Query string
}

// DeleteLastMessage removes the bot's most recent message in the channel.
type DeleteLastMessage struct{}

func (ReleaseLookup) kind() string     { return "release" }
func (PRReview) kind() string          { return "review" }
func (IssueAnalysis) kind() string     { return "issue" }
func (GenericAPI) kind() string        { return "api" }
func (DeleteLastMessage) kind() string { return "delete_last_message" }

// UsageError reports malformed syntax for a recognized verb. It is a
// user error, rendered as a help message, never a fall-through to the
// free-text path.
type UsageError struct {
	Verb  string
	Usage string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: %s", e.Usage)
}
