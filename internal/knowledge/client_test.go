package knowledge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hivemindhq/hivebot/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.KnowledgeConfig{BaseURL: srv.URL, APIKey: "test-key"})
}

func TestListWorkspaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workspaces" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"workspaces": [{"slug": "billing"}, {"slug": "platform"}, {"slug": ""}]}`))
	})

	slugs, err := c.ListWorkspaces(context.Background())
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(slugs) != 2 || slugs[0] != "billing" || slugs[1] != "platform" {
		t.Errorf("slugs = %v", slugs)
	}
}

func TestCreateThread(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workspace/billing/thread/new" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		w.Write([]byte(`{"thread": {"slug": "t-123"}}`))
	})

	id, err := c.CreateThread(context.Background(), "billing")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if id != "t-123" {
		t.Errorf("thread id = %q", id)
	}
}

func TestChatInThread(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/workspace/billing/thread/t-123/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"textResponse": "the answer"}`))
	})

	text, err := c.Chat(context.Background(), "billing", "t-123", "what is the answer")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if text != "the answer" {
		t.Errorf("text = %q", text)
	}
}

func TestChatUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workspace not found", http.StatusNotFound)
	})

	_, err := c.Chat(context.Background(), "missing", "", "hello")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
}

func TestChatApplicationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"textResponse": "", "error": "model overloaded"}`))
	})

	if _, err := c.Chat(context.Background(), "billing", "", "hello"); err == nil {
		t.Error("application-level error was not surfaced")
	}
}
