package matcher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hivemindhq/hivebot/internal/cache"
)

// RepoMeta is the repository metadata the dynamic map is built from.
type RepoMeta struct {
	Name        string
	Description string
}

// RepoLister provides repository metadata, normally the GitHub client.
type RepoLister interface {
	ListRepositories(ctx context.Context) ([]RepoMeta, error)
}

// DynamicKeywords builds a keyword map from repository metadata on a TTL.
// Each workspace named after a repository gets that repository's name
// tokens plus description bigrams as phrases. Phrases that are another
// workspace's own name token are filtered out so a mention of workspace B
// never scores for workspace A.
type DynamicKeywords struct {
	lister RepoLister
	cache  *cache.Memory[map[string][]string]
}

// NewDynamicKeywords creates a builder refreshing every ttl.
func NewDynamicKeywords(lister RepoLister, ttl time.Duration) *DynamicKeywords {
	return &DynamicKeywords{
		lister: lister,
		cache:  cache.NewMemory[map[string][]string](ttl),
	}
}

// Map returns the current keyword map, rebuilding it when the cached
// snapshot expired. A build failure returns nil so the caller falls back
// to the static map.
func (d *DynamicKeywords) Map(ctx context.Context, workspaces []string) map[string][]string {
	if d == nil || d.lister == nil {
		return nil
	}
	if m, ok := d.cache.Get(); ok {
		return m
	}

	repos, err := d.lister.ListRepositories(ctx)
	if err != nil {
		slog.Warn("dynamic keyword map build failed", "error", err)
		return nil
	}

	m := buildKeywordMap(repos, workspaces)
	d.cache.Set(m)
	slog.Debug("dynamic keyword map rebuilt", "workspaces", len(m))
	return m
}

// buildKeywordMap derives phrases per workspace from repository metadata.
func buildKeywordMap(repos []RepoMeta, workspaces []string) map[string][]string {
	// Name tokens owned by each workspace, used for cross-workspace filtering.
	owned := make(map[string]string) // token → owning workspace
	for _, ws := range workspaces {
		for _, tok := range nameTokens(ws) {
			owned[tok] = ws
		}
	}

	m := make(map[string][]string, len(workspaces))
	for _, ws := range workspaces {
		repo, ok := matchRepo(ws, repos)
		if !ok {
			continue
		}

		seen := make(map[string]bool)
		var phrases []string
		add := func(phrase string) {
			phrase = strings.TrimSpace(strings.ToLower(phrase))
			if phrase == "" || len(phrase) < 3 || seen[phrase] {
				return
			}
			// A phrase that is another workspace's own name token must not
			// be credited to this workspace.
			if owner, taken := owned[phrase]; taken && owner != ws {
				return
			}
			seen[phrase] = true
			phrases = append(phrases, phrase)
		}

		for _, tok := range nameTokens(repo.Name) {
			add(tok)
		}
		for _, gram := range bigrams(repo.Description) {
			add(gram)
		}

		if len(phrases) > 0 {
			m[ws] = phrases
		}
	}
	return m
}

// matchRepo finds the repository a workspace is named after.
func matchRepo(workspace string, repos []RepoMeta) (RepoMeta, bool) {
	norm := normalize(workspace)
	for _, r := range repos {
		if normalize(r.Name) == norm {
			return r, true
		}
	}
	for _, r := range repos {
		if strings.Contains(normalize(r.Name), norm) {
			return r, true
		}
	}
	return RepoMeta{}, false
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// nameTokens splits an identifier on -, _ and whitespace.
func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\t'
	})
}

// bigrams returns adjacent word pairs from a description.
func bigrams(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 2 {
		return nil
	}
	grams := make([]string, 0, len(words)-1)
	for i := 0; i+1 < len(words); i++ {
		grams = append(grams, words[i]+" "+words[i+1])
	}
	return grams
}
