// Package memory provides the client for the external memory service: a
// remote store with semantic search, partitioned by namespace. Every
// operation is namespace-scoped; cross-namespace reads are impossible at the
// service boundary because the namespace travels with each request.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Entry is a stored memory with its retrieval score.
type Entry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Searcher is the read side of the memory service, used for context assembly.
type Searcher interface {
	Search(ctx context.Context, namespace, query string, limit int) ([]Entry, error)
}

// Client talks to the memory service over HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a memory client. timeout bounds each request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Store saves content under a namespace and returns the memory id.
func (c *Client) Store(ctx context.Context, namespace, content string, metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload := map[string]any{
		"messages": []map[string]any{{"role": "user", "content": content}},
		"user_id":  namespace,
		"metadata": metadata,
	}

	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/memories", payload, &result); err != nil {
		return "", err
	}
	if len(result.Results) > 0 {
		return result.Results[0].ID, nil
	}
	return "", nil
}

// Search returns up to limit memories ranked by relevance within a namespace.
func (c *Client) Search(ctx context.Context, namespace, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 5
	}
	payload := map[string]any{
		"query":   query,
		"user_id": namespace,
		"limit":   limit,
	}

	var result struct {
		Results []struct {
			ID       string         `json:"id"`
			Memory   string         `json:"memory"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/memories/search", payload, &result); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(result.Results))
	for _, r := range result.Results {
		entries = append(entries, Entry{
			ID:       r.ID,
			Content:  r.Memory,
			Score:    r.Score,
			Metadata: r.Metadata,
		})
	}
	return entries, nil
}

// Get retrieves a memory by id. Returns nil if not found.
func (c *Client) Get(ctx context.Context, memoryID string) (*Entry, error) {
	var result struct {
		ID       string         `json:"id"`
		Memory   string         `json:"memory"`
		Metadata map[string]any `json:"metadata"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/memories/"+memoryID, nil, &result)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &Entry{ID: result.ID, Content: result.Memory, Metadata: result.Metadata}, nil
}

// Update rewrites a memory's content and/or metadata.
func (c *Client) Update(ctx context.Context, memoryID, content string, metadata map[string]any) error {
	payload := map[string]any{}
	if content != "" {
		payload["memory"] = content
	}
	if metadata != nil {
		payload["metadata"] = metadata
	}
	if len(payload) == 0 {
		return fmt.Errorf("memory update: content or metadata required")
	}
	return c.do(ctx, http.MethodPatch, "/v1/memories/"+memoryID, payload, nil)
}

// Delete removes a memory. Returns true if it was deleted.
func (c *Client) Delete(ctx context.Context, memoryID string) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/v1/memories/"+memoryID, nil, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns up to limit memories in a namespace.
func (c *Client) List(ctx context.Context, namespace string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return c.Search(ctx, namespace, "", limit)
}

// Health reports whether the memory service is reachable.
func (c *Client) Health(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
	return err == nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("memory service: status %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("memory service: marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("memory service: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Token "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("memory service: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return &statusError{code: resp.StatusCode, body: msg}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("memory service: decode response: %w", err)
		}
	}
	return nil
}
