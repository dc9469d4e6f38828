// Package github wraps the GitHub REST API for the bot's four
// structured operations.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v56/github"
	"golang.org/x/oauth2"

	"github.com/hivemindhq/hivebot/internal/config"
	"github.com/hivemindhq/hivebot/internal/matcher"
)

// Client wraps an authenticated GitHub API client. A nil Client means
// the integration is unconfigured; callers check before use.
type Client struct {
	api          *gh.Client
	defaultOwner string
}

// New creates a Client, or nil when no token is configured.
func New(cfg config.GitHubConfig) *Client {
	if cfg.Token == "" {
		return nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &Client{api: gh.NewClient(tc), defaultOwner: cfg.DefaultOwner}
}

// Release is the subset of release metadata the bot reports.
type Release struct {
	TagName     string
	Name        string
	PublishedAt time.Time
	URL         string
	Body        string
}

// GetLatestRelease fetches the most recent published release.
func (c *Client) GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	rel, _, err := c.api.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("latest release %s/%s: %w", owner, repo, err)
	}
	return &Release{
		TagName:     rel.GetTagName(),
		Name:        rel.GetName(),
		PublishedAt: rel.GetPublishedAt().Time,
		URL:         rel.GetHTMLURL(),
		Body:        rel.GetBody(),
	}, nil
}

// Issue is the subset of issue fields used for analysis.
type Issue struct {
	Number int
	Title  string
	State  string
	Body   string
	Labels []string
	URL    string
}

// GetIssue fetches one issue.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	issue, _, err := c.api.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("issue %s/%s#%d: %w", owner, repo, number, err)
	}
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return &Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		State:  issue.GetState(),
		Body:   issue.GetBody(),
		Labels: labels,
		URL:    issue.GetHTMLURL(),
	}, nil
}

// PullRequest carries the PR metadata plus its changed files, enough for
// a review prompt.
type PullRequest struct {
	Number    int
	Title     string
	State     string
	Body      string
	Author    string
	URL       string
	Additions int
	Deletions int
	Files     []ChangedFile
}

// ChangedFile is one file touched by a pull request.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

const maxReviewFiles = 30

// GetPullRequestForReview fetches a PR and its changed files. The file
// list is capped so a giant PR cannot blow up the review prompt.
func (c *Client) GetPullRequestForReview(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, _, err := c.api.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("pull request %s/%s#%d: %w", owner, repo, number, err)
	}

	files, _, err := c.api.PullRequests.ListFiles(ctx, owner, repo, number,
		&gh.ListOptions{PerPage: maxReviewFiles})
	if err != nil {
		return nil, fmt.Errorf("pull request files %s/%s#%d: %w", owner, repo, number, err)
	}

	out := &PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		State:     pr.GetState(),
		Body:      pr.GetBody(),
		Author:    pr.GetUser().GetLogin(),
		URL:       pr.GetHTMLURL(),
		Additions: pr.GetAdditions(),
		Deletions: pr.GetDeletions(),
	}
	for _, f := range files {
		out.Files = append(out.Files, ChangedFile{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.GetPatch(),
		})
	}
	return out, nil
}

// CallGenericAPI issues a raw request against the REST API and returns
// the response body pretty-printed when it is JSON, raw otherwise.
func (c *Client) CallGenericAPI(ctx context.Context, method, endpoint string, params map[string]string) (string, error) {
	endpoint = "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 && (method == http.MethodGet || method == "") {
		pairs := make([]string, 0, len(params))
		for k, v := range params {
			pairs = append(pairs, k+"="+v)
		}
		endpoint += "?" + strings.Join(pairs, "&")
	}
	if method == "" {
		method = http.MethodGet
	}

	req, err := c.api.NewRequest(method, strings.TrimPrefix(endpoint, "/"), nil)
	if err != nil {
		return "", fmt.Errorf("build api request: %w", err)
	}

	var buf strings.Builder
	if _, err := c.api.Do(ctx, req, &buf); err != nil {
		return "", fmt.Errorf("api call %s %s: %w", method, endpoint, err)
	}

	var pretty json.RawMessage
	if json.Unmarshal([]byte(buf.String()), &pretty) == nil {
		formatted, err := json.MarshalIndent(pretty, "", "  ")
		if err == nil {
			return string(formatted), nil
		}
	}
	return buf.String(), nil
}

// maxRepoPages caps repository listing so the keyword-map rebuild stays
// bounded on large orgs.
const maxRepoPages = 3

// ListRepositories implements matcher.RepoLister over the default
// owner's repositories, page-capped.
func (c *Client) ListRepositories(ctx context.Context) ([]matcher.RepoMeta, error) {
	if c == nil {
		return nil, fmt.Errorf("github integration not configured")
	}

	var out []matcher.RepoMeta
	opts := &gh.RepositoryListByOrgOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for page := 0; page < maxRepoPages; page++ {
		repos, resp, err := c.api.Repositories.ListByOrg(ctx, c.defaultOwner, opts)
		if err != nil {
			return nil, fmt.Errorf("list repositories for %s: %w", c.defaultOwner, err)
		}
		for _, r := range repos {
			out = append(out, matcher.RepoMeta{Name: r.GetName(), Description: r.GetDescription()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}
