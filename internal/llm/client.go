// Package llm is the client for the external generative model used by
// the Rewriter (§4.G) and, later, an interactive tutor surface. It is a
// direct adaptation of the teacher's internal/clients/intelligence
// client: a typed HTTP client carrying a per-call context timeout.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the generative model service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds an LLM client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RewriteRequest asks the model to improve or split a low-quality atom.
type RewriteRequest struct {
	Front       string   `json:"front"`
	Back        string   `json:"back"`
	AtomType    string   `json:"atom_type"`
	Issues      []string `json:"issues"`
	RewriteType string   `json:"rewrite_type"` // improve | split
}

// RewriteChild is one proposed child in a split response.
type RewriteChild struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// RewriteResponse carries the model's suggestion for either rewrite type.
type RewriteResponse struct {
	SuggestedFront string         `json:"suggested_front,omitempty"`
	SuggestedBack  string         `json:"suggested_back,omitempty"`
	Children       []RewriteChild `json:"children,omitempty"`
	TokensUsed     int            `json:"tokens_used"`
	LatencyMs      int            `json:"latency_ms"`
	Provider       string         `json:"provider"`
}

// Rewrite calls the model's rewrite endpoint. Returns an error wrapping
// the response body on any non-200 status so callers can tell "the
// service answered with a problem" from "the service is unreachable".
func (c *Client) Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rewrite request: %w", err)
	}

	url := fmt.Sprintf("%s/rewrite", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rewrite request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute rewrite request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rewrite response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result RewriteResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse rewrite response: %w", err)
	}
	return &result, nil
}

// TutorChatRequest is a single-turn message in an interactive study
// conversation, grounded on the teacher's EducatorChatRequest shape.
type TutorChatRequest struct {
	Message   string `json:"message"`
	AtomID    string `json:"atom_id"`
	SessionID string `json:"session_id,omitempty"`
}

// TutorChatResponse is the model's reply.
type TutorChatResponse struct {
	Response   string `json:"response"`
	SessionID  string `json:"session_id"`
	TokensUsed int    `json:"tokens_used"`
	LatencyMs  int    `json:"latency_ms"`
}

// Chat sends one tutor-chat message and returns the model's reply.
func (c *Client) Chat(ctx context.Context, req TutorChatRequest) (*TutorChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/message", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result TutorChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	return &result, nil
}
