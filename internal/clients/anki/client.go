// Package anki is the AnkiConnect JSON-RPC source adapter (§4.A, §6.2).
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atomsync/atomsync/internal/ratelimit"
)

// Client talks to a local AnkiConnect instance over JSON-RPC/HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *ratelimit.Registry
}

// New builds an AnkiConnect client. Defaults to the standard localhost
// endpoint when url is empty.
func New(url string, limiter *ratelimit.Registry) *Client {
	if url == "" {
		url = "http://127.0.0.1:8765"
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
	}
}

type rpcRequest struct {
	Action  string      `json:"action"`
	Version int         `json:"version"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

func (c *Client) call(ctx context.Context, action string, params interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx, "anki"); err != nil {
		return err
	}

	body, err := json.Marshal(rpcRequest{Action: action, Version: 6, Params: params})
	if err != nil {
		return fmt.Errorf("marshal anki request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build anki request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anki %s: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read anki response: %w", err)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("parse anki response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("anki %s: %s", action, *rr.Error)
	}
	if out != nil && rr.Result != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("parse anki result: %w", err)
		}
	}
	return nil
}

// DeckNames lists every local deck.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.call(ctx, "deckNames", nil, &names)
	return names, err
}

// ListNotes returns note IDs belonging to deck.
func (c *Client) ListNotes(ctx context.Context, deck string) ([]int64, error) {
	var ids []int64
	params := map[string]string{"query": fmt.Sprintf("deck:%q", deck)}
	err := c.call(ctx, "findNotes", params, &ids)
	return ids, err
}

// Note mirrors AnkiConnect's notesInfo shape.
type Note struct {
	NoteID int64             `json:"noteId"`
	ModelName string         `json:"modelName"`
	Fields map[string]struct {
		Value string `json:"value"`
		Order int    `json:"order"`
	} `json:"fields"`
	Tags []string `json:"tags"`
}

// NotesInfo fetches full field payloads for the given note IDs.
func (c *Client) NotesInfo(ctx context.Context, noteIDs []int64) ([]Note, error) {
	var notes []Note
	params := map[string]interface{}{"notes": noteIDs}
	err := c.call(ctx, "notesInfo", params, &notes)
	return notes, err
}

// CardStats mirrors the subset of cardsInfo used to seed fsrs_state
// (§6.2: factor, interval, reps, lapses, due).
type CardStats struct {
	CardID   int64 `json:"cardId"`
	Factor   int   `json:"factor"`
	Interval int   `json:"interval"`
	Reps     int   `json:"reps"`
	Lapses   int   `json:"lapses"`
	Due      int   `json:"due"`
}

// ListCardStats fetches review statistics for the given card IDs.
func (c *Client) ListCardStats(ctx context.Context, cardIDs []int64) ([]CardStats, error) {
	var stats []CardStats
	params := map[string]interface{}{"cards": cardIDs}
	err := c.call(ctx, "cardsInfo", params, &stats)
	return stats, err
}

// PushNote adds a new note to deck, used by `sync anki-push` (§6.3).
func (c *Client) PushNote(ctx context.Context, deck, modelName string, fields map[string]string, tags []string) (int64, error) {
	params := map[string]interface{}{
		"note": map[string]interface{}{
			"deckName":  deck,
			"modelName": modelName,
			"fields":    fields,
			"tags":      tags,
		},
	}
	var id int64
	err := c.call(ctx, "addNote", params, &id)
	return id, err
}

// UpdateNoteFields overwrites field content on an existing note.
func (c *Client) UpdateNoteFields(ctx context.Context, noteID int64, fields map[string]string) error {
	params := map[string]interface{}{
		"note": map[string]interface{}{
			"id":     noteID,
			"fields": fields,
		},
	}
	return c.call(ctx, "updateNoteFields", params, nil)
}
