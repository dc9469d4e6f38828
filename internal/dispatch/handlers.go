package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hivemindhq/hivebot/internal/bus"
	"github.com/hivemindhq/hivebot/internal/command"
	"github.com/hivemindhq/hivebot/internal/github"
)

const githubDisabledMsg = "The GitHub integration is not configured. Set a GitHub token to enable this command."

// runStructured executes a matched structured command. Structured
// commands bypass thread mapping entirely.
func (d *Dispatcher) runStructured(ctx context.Context, ev bus.InboundEvent, match command.Match, status *statusMessage) {
	switch m := match.(type) {
	case command.DeleteLastMessage:
		d.handleDeleteLast(ctx, ev, status)
		return
	case command.ReleaseLookup:
		if d.gh == nil {
			status.update(ctx, githubDisabledMsg)
			return
		}
		d.handleRelease(ctx, m, status)
	case command.PRReview:
		if d.gh == nil {
			status.update(ctx, githubDisabledMsg)
			return
		}
		d.handleReview(ctx, ev, m, status)
	case command.IssueAnalysis:
		if d.gh == nil {
			status.update(ctx, githubDisabledMsg)
			return
		}
		d.handleIssue(ctx, ev, m, status)
	case command.GenericAPI:
		if d.gh == nil {
			status.update(ctx, githubDisabledMsg)
			return
		}
		d.handleAPI(ctx, m, status)
	}
}

func (d *Dispatcher) handleRelease(ctx context.Context, m command.ReleaseLookup, status *statusMessage) {
	rel, err := d.gh.GetLatestRelease(ctx, m.Owner, m.Repo)
	if err != nil {
		slog.Warn("release lookup failed", "owner", m.Owner, "repo", m.Repo, "error", err)
		status.update(ctx, fmt.Sprintf("Could not fetch the latest release of %s/%s.", m.Owner, m.Repo))
		return
	}
	status.update(ctx, formatRelease(m.Owner, m.Repo, rel))
}

func (d *Dispatcher) handleReview(ctx context.Context, ev bus.InboundEvent, m command.PRReview, status *statusMessage) {
	pr, err := d.gh.GetPullRequestForReview(ctx, m.Owner, m.Repo, m.Number)
	if err != nil {
		slog.Warn("pull request fetch failed",
			"owner", m.Owner, "repo", m.Repo, "number", m.Number, "error", err)
		status.update(ctx, fmt.Sprintf("Could not fetch %s/%s#%d.", m.Owner, m.Repo, m.Number))
		return
	}

	ws := d.resolver.Resolve(ctx, m.Workspace, ev.UserID, ev.ChannelID)
	if ws == "" {
		status.update(ctx, "No usable workspace is configured for reviews.")
		return
	}

	answer, err := d.kb.Chat(ctx, ws, "", reviewPrompt(pr))
	if err != nil {
		slog.Warn("review chat failed", "workspace", ws, "error", err)
		status.update(ctx, "The review request failed upstream.")
		return
	}
	d.respond(ctx, ev, answer, status)
}

func (d *Dispatcher) handleIssue(ctx context.Context, ev bus.InboundEvent, m command.IssueAnalysis, status *statusMessage) {
	if m.Repo == "" {
		status.update(ctx, fmt.Sprintf("I need a repository to %s an issue, e.g. owner/repo#%d.", m.Verb, m.Number))
		return
	}

	issue, err := d.gh.GetIssue(ctx, m.Owner, m.Repo, m.Number)
	if err != nil {
		slog.Warn("issue fetch failed",
			"owner", m.Owner, "repo", m.Repo, "number", m.Number, "error", err)
		status.update(ctx, fmt.Sprintf("Could not fetch %s/%s#%d.", m.Owner, m.Repo, m.Number))
		return
	}

	ws := d.resolver.Resolve(ctx, m.Workspace, ev.UserID, ev.ChannelID)
	if ws == "" {
		status.update(ctx, "No usable workspace is configured for issue analysis.")
		return
	}

	answer, err := d.kb.Chat(ctx, ws, "", issuePrompt(m.Verb, issue, m.Remainder))
	if err != nil {
		slog.Warn("issue chat failed", "workspace", ws, "error", err)
		status.update(ctx, "The analysis request failed upstream.")
		return
	}
	d.respond(ctx, ev, answer, status)
}

func (d *Dispatcher) handleAPI(ctx context.Context, m command.GenericAPI, status *statusMessage) {
	method, endpoint := parseAPIQuery(m.Query)
	if endpoint == "" {
		status.update(ctx, "Tell me which API path to call, e.g. `api GET /repos/acme/widgets/milestones`.")
		return
	}

	body, err := d.gh.CallGenericAPI(ctx, method, endpoint, nil)
	if err != nil {
		slog.Warn("generic api call failed", "method", method, "endpoint", endpoint, "error", err)
		status.update(ctx, fmt.Sprintf("The API call %s %s failed.", method, endpoint))
		return
	}

	if len(body) > 3500 {
		body = body[:3500] + "\n..."
	}
	status.update(ctx, "```\n"+body+"\n```")
}

func (d *Dispatcher) handleDeleteLast(ctx context.Context, ev bus.InboundEvent, status *statusMessage) {
	// The freshly posted status message is the bot's newest message, so
	// drop it first, then look for the previous one.
	status.delete(ctx)

	ts, err := d.msg.LastBotMessageTS(ctx, ev.ChannelID, d.botUserID())
	if err != nil || ts == "" {
		slog.Warn("no deletable bot message found", "channel", ev.ChannelID, "error", err)
		return
	}
	if err := d.msg.DeleteMessage(ctx, ev.ChannelID, ts); err != nil {
		slog.Warn("message delete failed", "channel", ev.ChannelID, "ts", ts, "error", err)
	}
}

// respond posts a handler's answer. Short answers replace the status
// message in place; long ones are posted chunked and the status message
// is removed.
func (d *Dispatcher) respond(ctx context.Context, ev bus.InboundEvent, answer string, status *statusMessage) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		status.update(ctx, "I did not get an answer back. Please try again.")
		return
	}
	if len(answer) <= 3500 {
		status.update(ctx, answer)
		return
	}
	status.delete(ctx)
	if err := d.msg.PostChunked(ctx, ev.ChannelID, threadRoot(ev), answer); err != nil {
		slog.Warn("chunked response failed", "channel", ev.ChannelID, "error", err)
	}
}

func formatRelease(owner, repo string, rel *github.Release) string {
	name := rel.Name
	if name == "" {
		name = rel.TagName
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s/%s* latest release: *%s* (`%s`)\n", owner, repo, name, rel.TagName)
	if !rel.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", rel.PublishedAt.Format("2006-01-02 15:04 MST"))
	}
	if rel.URL != "" {
		fmt.Fprintf(&b, "%s", rel.URL)
	}
	return strings.TrimSpace(b.String())
}

func reviewPrompt(pr *github.PullRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review the following pull request and point out risks, bugs, and missing tests.\n\n")
	fmt.Fprintf(&b, "Title: %s\nAuthor: %s\nState: %s (+%d/-%d)\n\n", pr.Title, pr.Author, pr.State, pr.Additions, pr.Deletions)
	if pr.Body != "" {
		fmt.Fprintf(&b, "Description:\n%s\n\n", pr.Body)
	}
	for _, f := range pr.Files {
		fmt.Fprintf(&b, "--- %s (%s, +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
		if f.Patch != "" {
			fmt.Fprintf(&b, "%s\n", f.Patch)
		}
	}
	return b.String()
}

func issuePrompt(verb string, issue *github.Issue, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s the following issue.\n\n", capitalize(verb))
	fmt.Fprintf(&b, "Issue #%d: %s\nState: %s\n", issue.Number, issue.Title, issue.State)
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.Body != "" {
		fmt.Fprintf(&b, "\n%s\n", issue.Body)
	}
	if question != "" {
		fmt.Fprintf(&b, "\nSpecifically: %s\n", question)
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// parseAPIQuery splits "GET /repos/..." style queries into method and
// endpoint, defaulting to GET.
func parseAPIQuery(query string) (method, endpoint string) {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return http.MethodGet, ""
	}
	switch strings.ToUpper(fields[0]) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		method = strings.ToUpper(fields[0])
		fields = fields[1:]
	default:
		method = http.MethodGet
	}
	if len(fields) == 0 {
		return method, ""
	}
	return method, fields[0]
}
