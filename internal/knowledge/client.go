// Package knowledge is the client for the knowledge-backend HTTP API:
// workspace listing, thread creation, and chat.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hivemindhq/hivebot/internal/config"
)

// HTTPError is a non-2xx response from the knowledge backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("knowledge api: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the knowledge backend. Metadata calls use a short
// timeout; chat calls use a long one.
type Client struct {
	baseURL  string
	apiKey   string
	chatMode string
	meta     *http.Client
	chat     *http.Client
}

// New creates a Client from configuration.
func New(cfg config.KnowledgeConfig) *Client {
	mode := cfg.ChatMode
	if mode == "" {
		mode = "chat"
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		chatMode: mode,
		meta:     &http.Client{Timeout: cfg.MetaTimeout.Std(10 * time.Second)},
		chat:     &http.Client{Timeout: cfg.ChatTimeout.Std(120 * time.Second)},
	}
}

// ListWorkspaces returns the slugs of all workspaces.
func (c *Client) ListWorkspaces(ctx context.Context) ([]string, error) {
	var out struct {
		Workspaces []struct {
			Slug string `json:"slug"`
		} `json:"workspaces"`
	}
	if err := c.do(ctx, c.meta, http.MethodGet, "/workspaces", nil, &out); err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(out.Workspaces))
	for _, w := range out.Workspaces {
		if w.Slug != "" {
			slugs = append(slugs, w.Slug)
		}
	}
	return slugs, nil
}

// CreateThread creates a new chat thread inside workspace and returns
// its id.
func (c *Client) CreateThread(ctx context.Context, workspace string) (string, error) {
	var out struct {
		Thread struct {
			Slug string `json:"slug"`
		} `json:"thread"`
	}
	path := fmt.Sprintf("/workspace/%s/thread/new", workspace)
	if err := c.do(ctx, c.meta, http.MethodPost, path, map[string]any{}, &out); err != nil {
		return "", err
	}
	if out.Thread.Slug == "" {
		return "", fmt.Errorf("knowledge api: thread create returned no id")
	}
	return out.Thread.Slug, nil
}

// Chat sends text into a workspace thread and returns the reply text.
// threadID may be empty for a one-off, threadless query.
func (c *Client) Chat(ctx context.Context, workspace, threadID, text string) (string, error) {
	body := map[string]any{
		"message": text,
		"mode":    c.chatMode,
	}
	path := fmt.Sprintf("/workspace/%s/chat", workspace)
	if threadID != "" {
		path = fmt.Sprintf("/workspace/%s/thread/%s/chat", workspace, threadID)
	}

	var out struct {
		TextResponse string `json:"textResponse"`
		Error        string `json:"error"`
	}
	if err := c.do(ctx, c.chat, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("knowledge api: %s", out.Error)
	}
	return out.TextResponse, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("knowledge api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
