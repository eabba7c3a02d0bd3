package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atomsync/atomsync/internal/clients/anki"
	"github.com/atomsync/atomsync/internal/clients/notion"
)

// These tests exercise the logic that doesn't require a live Postgres
// connection — store-backed behavior (checkpoint persistence, staging
// commits, sync-run bookkeeping) needs a real database and isn't
// covered here, following the same split the teacher's
// tests/curriculum_test.go uses (pure-logic assertions, no DB fixture).

func TestNoteJSONFlattensFields(t *testing.T) {
	n := anki.Note{
		NoteID:    42,
		ModelName: "Basic",
		Fields: map[string]struct {
			Value string `json:"value"`
			Order int    `json:"order"`
		}{
			"Front": {Value: "What is Go?", Order: 0},
			"Back":  {Value: "A language.", Order: 1},
		},
		Tags: []string{"go", "basics"},
	}

	payload, err := noteJSON(n)
	assert.NoError(t, err)
	assert.Contains(t, string(payload), `"note_id":42`)
	assert.Contains(t, string(payload), `"What is Go?"`)
	assert.Contains(t, string(payload), `"go"`)
}

func TestPullerForUnknownCollection(t *testing.T) {
	e := &Engine{sources: map[string]CollectionSource{}}
	assert.Nil(t, e.pullerFor("missing"))
}

func TestPullerForNotionWithoutClient(t *testing.T) {
	e := &Engine{sources: map[string]CollectionSource{
		"study": {Kind: SourceKindNotion, ExternalID: "db-1"},
	}}
	assert.Nil(t, e.pullerFor("study"), "a Notion collection with no configured client has no puller")
}

func TestPullerForAnkiWithoutClient(t *testing.T) {
	e := &Engine{sources: map[string]CollectionSource{
		"deck": {Kind: SourceKindAnki, ExternalID: "Default"},
	}}
	assert.Nil(t, e.pullerFor("deck"))
}

func TestPullerForResolvesConfiguredAdapter(t *testing.T) {
	e := &Engine{
		notion: notion.New("", "key", nil, nil),
		anki:   anki.New("", nil),
		sources: map[string]CollectionSource{
			"study": {Kind: SourceKindNotion, ExternalID: "db-1"},
			"deck":  {Kind: SourceKindAnki, ExternalID: "Default"},
		},
	}
	assert.NotNil(t, e.pullerFor("study"))
	assert.NotNil(t, e.pullerFor("deck"))
}

func TestCancelUnknownSyncID(t *testing.T) {
	e := New(nil, nil, nil, nil, nil)
	assert.False(t, e.Cancel("does-not-exist"))
}

func TestCancelInvokesStoredCancelFunc(t *testing.T) {
	e := New(nil, nil, nil, nil, nil)
	called := false
	_, cancel := context.WithCancel(context.Background())
	e.cancels["run-1"] = func() {
		called = true
		cancel()
	}

	assert.True(t, e.Cancel("run-1"))
	assert.True(t, called)
}

func TestBreakerIsLazyAndPerCollection(t *testing.T) {
	e := New(nil, nil, nil, nil, nil)
	b1 := e.breaker("study")
	b2 := e.breaker("study")
	b3 := e.breaker("deck")

	assert.Same(t, b1, b2, "repeated calls for the same collection reuse its breaker")
	assert.NotSame(t, b1, b3, "different collections get independent breakers")
}
