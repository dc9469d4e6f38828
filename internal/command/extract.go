package command

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	refRe    = regexp.MustCompile(`([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)#(\d+)`)
	numberRe = regexp.MustCompile(`#(\d+)\b`)
	tagRe    = regexp.MustCompile(`#([A-Za-z][A-Za-z0-9_-]*)`)
)

// FromIntent builds a structured Match out of natural-language text once
// the classifier has named one of the GitHub intents. Extraction is
// best-effort: when the required fields cannot be pulled out of the
// text, it reports false and the caller stays on the free-text path.
func (r *Router) FromIntent(intentName, text string) (Match, bool) {
	switch intentName {
	case IntentReleaseInfo:
		owner, repo := r.extractRepo(text)
		if repo == "" {
			return nil, false
		}
		return ReleaseLookup{Owner: owner, Repo: repo}, true

	case IntentPRReview:
		owner, repo, number, ok := extractRef(text)
		if !ok {
			return nil, false
		}
		if owner == "" {
			owner = r.github.DefaultOwner
		}
		if repo == "" {
			_, repo = r.extractRepo(text)
			if repo == "" {
				return nil, false
			}
		}
		return PRReview{
			Owner:     owner,
			Repo:      repo,
			Number:    number,
			Workspace: NormalizeWorkspace(extractTag(text), repo, ""),
		}, true

	case IntentIssueAnalysis:
		owner, repo, number, ok := extractRef(text)
		if !ok {
			return nil, false
		}
		if repo == "" {
			owner, repo = r.extractRepo(text)
		}
		if owner == "" {
			owner = r.github.DefaultOwner
		}
		return IssueAnalysis{
			Verb:      "analyze",
			Owner:     owner,
			Repo:      repo,
			Number:    number,
			Workspace: NormalizeWorkspace(extractTag(text), repo, ""),
			Remainder: text,
		}, true

	case IntentGitHubAPI:
		return GenericAPI{Query: text}, true
	}
	return nil, false
}

// extractRef finds an "owner/repo#N" reference, or a bare "#N".
func extractRef(text string) (owner, repo string, number int, ok bool) {
	if m := refRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[3])
		if err != nil || n <= 0 {
			return "", "", 0, false
		}
		return m[1], m[2], n, true
	}
	if m := numberRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return "", "", 0, false
		}
		return "", "", n, true
	}
	return "", "", 0, false
}

// extractRepo finds a repository mention: an explicit owner/repo pair, a
// configured alias, or a token carrying the conventional namespace
// prefix.
func (r *Router) extractRepo(text string) (owner, repo string) {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,!?:;()")
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		if _, ok := r.github.RepoAliases[word]; ok {
			return r.ResolveRepoIdentifier(word)
		}
		if i := strings.IndexByte(word, '/'); i > 0 && i < len(word)-1 && !strings.Contains(word, "#") {
			return r.ResolveRepoIdentifier(word)
		}
		if r.github.RepoPrefix != "" && strings.HasPrefix(word, r.github.RepoPrefix) && len(word) > len(r.github.RepoPrefix) {
			return r.ResolveRepoIdentifier(word)
		}
	}
	return "", ""
}

// extractTag returns the first non-numeric #tag in text, "" when none.
func extractTag(text string) string {
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		if m[1] == "delete_last_message" {
			continue
		}
		return m[1]
	}
	return ""
}
