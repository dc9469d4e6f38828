package command

import (
	"strconv"
	"strings"

	"github.com/hivemindhq/hivebot/internal/config"
)

// Router matches message text and slash commands against the command
// grammar and resolves repository identifiers.
type Router struct {
	prefix string
	github config.GitHubConfig
}

// NewRouter creates a Router. prefix is the in-message command token,
// e.g. "gh>".
func NewRouter(prefix string, github config.GitHubConfig) *Router {
	return &Router{prefix: prefix, github: github}
}

const (
	usageRelease = "release <repo>"
	usageReview  = "review pr <owner>/<repo>#<number> [#workspace]"
	usageIssue   = "analyze|summarize|explain issue [<owner>/<repo>]#<number> [#workspace] [question]"
	usageAPI     = "api <request>"
)

// MatchMessage matches the in-message command form. Returns (nil, nil)
// when text is not a command at all, a *UsageError when a recognized
// verb has malformed arguments, and a Match on success.
func (r *Router) MatchMessage(text string) (Match, error) {
	trimmed := strings.TrimSpace(text)

	if trimmed == "#delete_last_message" {
		return DeleteLastMessage{}, nil
	}

	if !strings.HasPrefix(trimmed, r.prefix) {
		return nil, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, r.prefix))
	if rest == "" {
		return nil, nil
	}

	verb, args := splitVerb(rest)
	switch verb {
	case "release":
		return r.parseRelease(args)
	case "review":
		sub, prArgs := splitVerb(args)
		if sub != "pr" {
			return nil, &UsageError{Verb: "review", Usage: r.prefix + " " + usageReview}
		}
		return r.parseReview(prArgs)
	case "analyze", "summarize", "explain":
		sub, issueArgs := splitVerb(args)
		if sub != "issue" {
			return nil, &UsageError{Verb: verb, Usage: r.prefix + " " + usageIssue}
		}
		return r.parseIssue(verb, issueArgs)
	case "api":
		return r.parseAPI(args)
	default:
		// Unknown verb after the prefix falls through to free text.
		return nil, nil
	}
}

// MatchSlash matches the slash-command form. The verb is implicit in the
// command name; the argument grammar is shared with MatchMessage.
func (r *Router) MatchSlash(command, text string) (Match, error) {
	args := strings.TrimSpace(text)
	switch command {
	case "/gh-latest":
		m, err := r.parseRelease(args)
		if err != nil {
			return nil, &UsageError{Verb: command, Usage: command + " <repo>"}
		}
		return m, nil
	case "/gh-review":
		m, err := r.parseReview(args)
		if err != nil {
			return nil, &UsageError{Verb: command, Usage: command + " <owner>/<repo>#<number> [#workspace]"}
		}
		return m, nil
	case "/gh-analyze":
		m, err := r.parseIssue("analyze", args)
		if err != nil {
			return nil, &UsageError{Verb: command, Usage: command + " [<owner>/<repo>]#<number> [#workspace] [question]"}
		}
		return m, nil
	case "/gh-api":
		m, err := r.parseAPI(args)
		if err != nil {
			return nil, &UsageError{Verb: command, Usage: command + " <request>"}
		}
		return m, nil
	default:
		return nil, nil
	}
}

func (r *Router) parseRelease(args string) (Match, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return nil, &UsageError{Verb: "release", Usage: r.prefix + " " + usageRelease}
	}
	owner, repo := r.ResolveRepoIdentifier(fields[0])
	if repo == "" {
		return nil, &UsageError{Verb: "release", Usage: r.prefix + " " + usageRelease}
	}
	return ReleaseLookup{Owner: owner, Repo: repo}, nil
}

func (r *Router) parseReview(args string) (Match, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil, &UsageError{Verb: "review", Usage: r.prefix + " " + usageReview}
	}

	owner, repo, number, ok := parseIssueRef(fields[0])
	if !ok || owner == "" && repo == "" {
		return nil, &UsageError{Verb: "review", Usage: r.prefix + " " + usageReview}
	}
	if owner == "" {
		owner = r.github.DefaultOwner
	}

	workspace, _ := takeWorkspaceTag(fields[1:])
	return PRReview{
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		Workspace: NormalizeWorkspace(workspace, repo, ""),
	}, nil
}

func (r *Router) parseIssue(verb, args string) (Match, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil, &UsageError{Verb: verb, Usage: r.prefix + " " + usageIssue}
	}

	owner, repo, number, ok := parseIssueRef(fields[0])
	if !ok {
		return nil, &UsageError{Verb: verb, Usage: r.prefix + " " + usageIssue}
	}
	if owner == "" {
		owner = r.github.DefaultOwner
	}

	workspace, rest := takeWorkspaceTag(fields[1:])
	return IssueAnalysis{
		Verb:      verb,
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		Workspace: NormalizeWorkspace(workspace, repo, ""),
		Remainder: strings.Join(rest, " "),
	}, nil
}

func (r *Router) parseAPI(args string) (Match, error) {
	if strings.TrimSpace(args) == "" {
		return nil, &UsageError{Verb: "api", Usage: r.prefix + " " + usageAPI}
	}
	return GenericAPI{Query: strings.TrimSpace(args)}, nil
}

// ResolveRepoIdentifier expands a repository token into (owner, repo).
// Aliases expand to their configured full name, one alias may carry an
// owner override, "owner/repo" splits as written, and a bare name gets
// the conventional namespace prefix when it is not already present.
func (r *Router) ResolveRepoIdentifier(token string) (owner, repo string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ""
	}

	if full, ok := r.github.RepoAliases[token]; ok {
		owner = r.github.DefaultOwner
		if o, ok := r.github.AliasOwners[token]; ok {
			owner = o
		}
		return owner, full
	}

	if i := strings.IndexByte(token, '/'); i > 0 && i < len(token)-1 {
		return token[:i], token[i+1:]
	}

	repo = token
	if r.github.RepoPrefix != "" && !strings.HasPrefix(repo, r.github.RepoPrefix) {
		repo = r.github.RepoPrefix + repo
	}
	return r.github.DefaultOwner, repo
}

// NormalizeWorkspace applies the numeric-workspace guard: a candidate
// that is purely numeric is almost certainly a misparsed issue or PR
// number, so it is rejected in favor of the repo name, then def.
func NormalizeWorkspace(candidate, repo, def string) string {
	if candidate != "" && !isNumeric(candidate) {
		return candidate
	}
	if candidate != "" {
		if repo != "" {
			return repo
		}
		return def
	}
	return candidate
}

// parseIssueRef parses "<owner>/<repo>#<number>" or "#<number>"
// (repo-less). Returns ok=false for anything else.
func parseIssueRef(token string) (owner, repo string, number int, ok bool) {
	hash := strings.IndexByte(token, '#')
	if hash < 0 {
		return "", "", 0, false
	}

	n, err := strconv.Atoi(token[hash+1:])
	if err != nil || n <= 0 {
		return "", "", 0, false
	}

	ref := token[:hash]
	if ref == "" {
		return "", "", n, true
	}
	i := strings.IndexByte(ref, '/')
	if i <= 0 || i == len(ref)-1 {
		return "", "", 0, false
	}
	return ref[:i], ref[i+1:], n, true
}

// takeWorkspaceTag pulls the first "#workspace" token out of fields and
// returns it with the remaining fields. Numeric tags are left in place
// for the numeric guard to reject later.
func takeWorkspaceTag(fields []string) (workspace string, rest []string) {
	for i, f := range fields {
		if strings.HasPrefix(f, "#") && len(f) > 1 {
			rest = append(rest, fields[:i]...)
			rest = append(rest, fields[i+1:]...)
			return strings.Trim(f[1:], ".,!?:;"), rest
		}
	}
	return "", fields
}

func splitVerb(s string) (verb, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return strings.ToLower(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return strings.ToLower(s), ""
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
