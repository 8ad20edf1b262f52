// Package upstream is the client for the external data API: entity lookups,
// full-text search, the data-quality issues feed and checkout sessions.
//
// Every call is a single request bounded by the caller's context and the
// client timeout. Nothing is retried or cached.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sanctions-web/sanctions-web/internal/telemetry"
)

// maxErrorBody caps how much of an error response is kept for StatusError
const maxErrorBody = 512

// Endpoint names used as metric labels
const (
	endpointEntities = "entities"
	endpointSearch   = "search"
	endpointIssues   = "issues"
	endpointSession  = "stripe_session"
)

// Client talks to the data API and the issues feed
type Client struct {
	BaseURL    string
	IssuesURL  string
	HTTPClient *http.Client
	UserAgent  string
}

// New creates a client for the API at baseURL
func New(baseURL, issuesURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		IssuesURL: issuesURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: "sanctions-web",
	}
}

// get performs a GET and records it in the upstream metrics. The caller owns
// the response body.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	telemetry.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.UpstreamRequestsTotal.WithLabelValues(endpoint, telemetry.StatusClass(0)).Inc()
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	telemetry.UpstreamRequestsTotal.WithLabelValues(endpoint, telemetry.StatusClass(resp.StatusCode)).Inc()
	return resp, nil
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func statusError(rawURL string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// drain discards the rest of a body so the connection can be reused
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// GetEntityByID fetches one entity. A non-2xx response is reported as
// (nil, nil): the entity is treated as absent. Transport and decode
// failures are returned as errors.
func (c *Client) GetEntityByID(ctx context.Context, id string) (*Entity, error) {
	rawURL := fmt.Sprintf("%s/entities/%s", c.BaseURL, url.PathEscape(id))
	resp, err := c.get(ctx, endpointEntities, rawURL)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if !ok(resp) {
		slog.Debug("entity lookup returned no entity", "id", id, "status", resp.StatusCode)
		return nil, nil
	}

	var entity Entity
	if err := json.NewDecoder(resp.Body).Decode(&entity); err != nil {
		return nil, fmt.Errorf("failed to decode entity %s: %w", id, err)
	}
	return &entity, nil
}

// Search runs a full-text query against a dataset scope
func (c *Client) Search(ctx context.Context, dataset string, q SearchQuery) (*SearchResponse, error) {
	rawURL := fmt.Sprintf("%s/search/%s?%s", c.BaseURL, url.PathEscape(dataset), q.Values().Encode())
	resp, err := c.get(ctx, endpointSearch, rawURL)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if !ok(resp) {
		return nil, statusError(rawURL, resp)
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &result, nil
}

// GetIssues fetches the whole issues feed. It is fetched on every call.
func (c *Client) GetIssues(ctx context.Context) ([]Issue, error) {
	resp, err := c.get(ctx, endpointIssues, c.IssuesURL)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if !ok(resp) {
		return nil, statusError(c.IssuesURL, resp)
	}

	var doc IssueIndex
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode issues: %w", err)
	}
	if doc.Issues == nil {
		doc.Issues = []Issue{}
	}
	return doc.Issues, nil
}

// CheckoutSession exchanges the query parameters of a payment provider
// callback for a session secret. Any failure, including a response without
// a secret, yields nil.
func (c *Client) CheckoutSession(ctx context.Context, query url.Values) *Session {
	rawURL := c.BaseURL + "/stripe/session"
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	resp, err := c.get(ctx, endpointSession, rawURL)
	if err != nil {
		slog.Warn("checkout session lookup failed", "error", err)
		return nil
	}
	defer drain(resp)

	if !ok(resp) {
		slog.Warn("checkout session lookup rejected", "status", resp.StatusCode)
		return nil
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		slog.Warn("checkout session response unreadable", "error", err)
		return nil
	}
	if session.Secret == "" {
		return nil
	}
	return &session
}
