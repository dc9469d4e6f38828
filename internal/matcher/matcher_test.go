package matcher

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestBestMatch(t *testing.T) {
	keywords := map[string][]string{
		"billing":  {"invoice", "payment", "refund"},
		"platform": {"deploy", "pipeline", "k8s"},
		"support":  {"ticket", "customer"},
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"single clear winner", "the deploy pipeline is stuck again", "platform"},
		{"counts repeated phrases", "refund the invoice, then refund the other invoice", "billing"},
		{"case insensitive", "CUSTOMER opened a TICKET", "support"},
		{"no match falls back", "how do I reset my password", "general"},
		{"tie falls back", "invoice for the customer", "general"},
		{"empty text falls back", "", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestMatch(tt.text, keywords, "general"); got != tt.want {
				t.Errorf("BestMatch(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestBestMatchOverlapping(t *testing.T) {
	keywords := map[string][]string{
		"a": {"aa"},
		"b": {"zzz"},
	}
	// "aaaa" contains "aa" three times when counted overlapping.
	if got := BestMatch("aaaa zzz", keywords, "def"); got != "a" {
		t.Errorf("BestMatch = %q, want %q", got, "a")
	}
}

func TestBestMatchSkipsNilEntries(t *testing.T) {
	keywords := map[string][]string{
		"broken":  nil,
		"billing": {"invoice"},
	}
	if got := BestMatch("invoice attached", keywords, "def"); got != "billing" {
		t.Errorf("BestMatch = %q, want %q", got, "billing")
	}
}

func TestBestMatchEmptyMap(t *testing.T) {
	if got := BestMatch("anything", nil, "def"); got != "def" {
		t.Errorf("BestMatch = %q, want %q", got, "def")
	}
}

type fakeLister struct {
	repos []RepoMeta
	err   error
	calls int
}

func (f *fakeLister) ListRepositories(ctx context.Context) ([]RepoMeta, error) {
	f.calls++
	return f.repos, f.err
}

func TestDynamicKeywordsBuild(t *testing.T) {
	lister := &fakeLister{repos: []RepoMeta{
		{Name: "billing-service", Description: "handles invoice generation and payment capture"},
		{Name: "platform-infra", Description: "cluster tooling"},
	}}
	d := NewDynamicKeywords(lister, time.Minute)

	m := d.Map(context.Background(), []string{"billing", "platform"})
	if m == nil {
		t.Fatal("Map returned nil")
	}

	billing, ok := m["billing"]
	if !ok {
		t.Fatalf("no entry for billing: %v", m)
	}
	if !contains(billing, "invoice generation") {
		t.Errorf("billing phrases missing description bigram: %v", billing)
	}
	// "platform" is another workspace's name token and must not be
	// credited to billing even if it appeared in its metadata.
	if contains(billing, "platform") {
		t.Errorf("billing phrases include another workspace's name: %v", billing)
	}
}

func TestDynamicKeywordsCaches(t *testing.T) {
	lister := &fakeLister{repos: []RepoMeta{{Name: "billing", Description: "money stuff"}}}
	d := NewDynamicKeywords(lister, time.Minute)

	workspaces := []string{"billing"}
	first := d.Map(context.Background(), workspaces)
	second := d.Map(context.Background(), workspaces)
	if lister.calls != 1 {
		t.Errorf("lister called %d times, want 1", lister.calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached map differs: %v vs %v", first, second)
	}
}

func TestDynamicKeywordsBuildFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("api down")}
	d := NewDynamicKeywords(lister, time.Minute)
	if m := d.Map(context.Background(), []string{"billing"}); m != nil {
		t.Errorf("Map = %v, want nil on build failure", m)
	}
}

func TestDynamicKeywordsNilLister(t *testing.T) {
	var d *DynamicKeywords
	if m := d.Map(context.Background(), nil); m != nil {
		t.Errorf("Map on nil builder = %v, want nil", m)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
