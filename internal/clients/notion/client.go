// Package notion is the source adapter for the Notion REST API (§4.A,
// §6.1), built the way the teacher's internal/clients/intelligence
// client talks to its external service: a small typed HTTP client with
// a context-scoped timeout per call.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atomsync/atomsync/internal/ratelimit"
	"github.com/atomsync/atomsync/internal/writeprotect"
)

// Page is one opaque Notion database page, property payload kept as
// raw JSON — the Transform stage owns interpreting it (§4.C).
type Page struct {
	ID              string          `json:"id"`
	Properties      json.RawMessage `json:"properties"`
	LastEditedTime  time.Time       `json:"last_edited_time"`
}

// Client talks to the Notion REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Registry
	protect    *writeprotect.Flag
}

// New builds a Notion client. protect governs every mutating call;
// limiter enforces the shared per-API token bucket (§4.B).
func New(baseURL, apiKey string, limiter *ratelimit.Registry, protect *writeprotect.Flag) *Client {
	if baseURL == "" {
		baseURL = "https://api.notion.com/v1"
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		protect:    protect,
	}
}

type queryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// ListPages fetches one page of results from a Notion database query,
// honoring the shared token bucket before every call. since, if
// non-nil, filters to pages edited on/after that watermark (incremental
// mode, §4.B).
func (c *Client) ListPages(ctx context.Context, databaseID string, since *time.Time, cursor string) (pages []Page, nextCursor string, newWatermark time.Time, err error) {
	if err := c.limiter.Wait(ctx, "notion"); err != nil {
		return nil, "", time.Time{}, err
	}

	body := map[string]interface{}{
		"page_size": 100,
	}
	if cursor != "" {
		body["start_cursor"] = cursor
	}
	if since != nil {
		body["filter"] = map[string]interface{}{
			"timestamp": "last_edited_time",
			"last_edited_time": map[string]interface{}{
				"on_or_after": since.Format(time.RFC3339),
			},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/databases/%s/query", c.baseURL, databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", "2022-06-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("notion query: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("read notion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", time.Time{}, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	var qr queryResponse
	if err := json.Unmarshal(raw, &qr); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("parse notion response: %w", err)
	}

	watermark := time.Time{}
	for _, p := range qr.Results {
		if p.LastEditedTime.After(watermark) {
			watermark = p.LastEditedTime
		}
	}

	next := ""
	if qr.HasMore {
		next = qr.NextCursor
	}
	return qr.Results, next, watermark, nil
}

// StatusError carries an HTTP status code so callers can distinguish
// transient (5xx, 429) from permanent (other 4xx) failures (§7).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notion: unexpected status %d: %s", e.Code, e.Body)
}

// Transient reports whether this status should be retried (§4.B, §7).
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// UpdatePage writes properties back to Notion. Vetoed whenever write
// protection is engaged, regardless of caller intent (§4.A, P8).
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties json.RawMessage) error {
	if err := c.protect.Guard(); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx, "notion"); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/pages/%s", c.baseURL, pageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(properties))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", "2022-06-28")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notion update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	return nil
}
