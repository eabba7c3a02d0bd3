// Package sync implements the Sync Engine (§4.B): a bounded worker
// pool that pulls pages/notes from the Notion and Anki source adapters,
// tracks per-collection checkpoints, and commits staging batches with
// circuit-breaker protection against a misbehaving external API.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/atomsync/atomsync/internal/clients/anki"
	"github.com/atomsync/atomsync/internal/clients/notion"
	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/retry"
	"github.com/atomsync/atomsync/internal/store"
)

// BatchSize is the number of staging rows committed per transaction-ish
// batch before the checkpoint is advanced (§4.B: "~100 records").
const BatchSize = 100

// DefaultPoolSize bounds how many collections sync concurrently when a
// run doesn't specify its own (§9: "bounded worker pool").
const DefaultPoolSize = 4

// SourceKind identifies which adapter a collection pulls from.
type SourceKind string

const (
	SourceKindNotion SourceKind = "notion"
	SourceKindAnki   SourceKind = "anki"
)

// CollectionSource maps a configured collection name to the external
// identifier the adapter needs — a Notion database ID or an Anki deck
// name (§6.5 "per-collection external ids").
type CollectionSource struct {
	Kind       SourceKind
	ExternalID string
}

// Engine runs sync passes against the configured source collections.
type Engine struct {
	notion  *notion.Client
	anki    *anki.Client
	store   *store.Store
	log     *slog.Logger
	sources map[string]CollectionSource
	poolSize int

	breakers   map[string]*gobreaker.CircuitBreaker
	breakersMu sync.Mutex

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// New builds a sync Engine. Either client may be nil if that source is
// not configured. sources maps each configured collection name to the
// adapter and external ID it pulls from.
func New(notionClient *notion.Client, ankiClient *anki.Client, st *store.Store, log *slog.Logger, sources map[string]CollectionSource) *Engine {
	return &Engine{
		notion:   notionClient,
		anki:     ankiClient,
		store:    st,
		log:      log,
		sources:  sources,
		poolSize: DefaultPoolSize,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// WithPoolSize overrides the worker pool width.
func (e *Engine) WithPoolSize(n int) *Engine {
	if n > 0 {
		e.poolSize = n
	}
	return e
}

func (e *Engine) breaker(collection string) *gobreaker.CircuitBreaker {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()
	if b, ok := e.breakers[collection]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        collection,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	e.breakers[collection] = b
	return b
}

// Result summarizes one collection's pull within a run.
type Result struct {
	Collection string
	Created    int
	Updated    int
	Tombstoned int
	Err        error
}

// Run executes one sync pass across collections, in parallel, each
// collection independently checkpointed and circuit-broken (§4.B "per-
// collection parallel support"). Returns the persisted SyncRun record.
func (e *Engine) Run(ctx context.Context, mode models.SyncMode, collections []string) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:          uuid.NewString(),
		Mode:        mode,
		Collections: collections,
		Status:      models.SyncRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateSyncRun(ctx, run); err != nil {
		return nil, err
	}
	return e.runBody(ctx, run, collections, mode)
}

// StartAsync creates and persists the SyncRun record synchronously, then
// runs the pull/commit work in the background, returning the run ID
// immediately (§6.4 `POST /api/sync/notion` → `{sync_id}` (async)).
func (e *Engine) StartAsync(ctx context.Context, mode models.SyncMode, collections []string) (string, error) {
	run := &models.SyncRun{
		ID:          uuid.NewString(),
		Mode:        mode,
		Collections: collections,
		Status:      models.SyncRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateSyncRun(ctx, run); err != nil {
		return "", err
	}
	go func() {
		if _, err := e.runBody(context.Background(), run, collections, mode); err != nil {
			e.log.Error("async sync run failed", "sync_id", run.ID, "error", err)
		}
	}()
	return run.ID, nil
}

func (e *Engine) runBody(ctx context.Context, run *models.SyncRun, collections []string, mode models.SyncMode) (*models.SyncRun, error) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancelMu.Lock()
	e.cancels[run.ID] = cancel
	e.cancelMu.Unlock()
	defer func() {
		e.cancelMu.Lock()
		delete(e.cancels, run.ID)
		e.cancelMu.Unlock()
		cancel()
	}()

	// Bounded worker pool consuming a work channel of collection jobs
	// (§9): width capped at poolSize regardless of how many collections
	// were requested.
	jobs := make(chan string, len(collections))
	for _, c := range collections {
		jobs <- c
	}
	close(jobs)

	results := make(chan Result, len(collections))
	workers := e.poolSize
	if workers > len(collections) {
		workers = len(collections)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for collection := range jobs {
				results <- e.syncCollection(runCtx, collection, mode)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	warnings := false
	for r := range results {
		run.Created += r.Created
		run.Updated += r.Updated
		run.Tombstoned += r.Tombstoned
		if r.Err != nil {
			warnings = true
			if run.ErrorMessage != "" {
				run.ErrorMessage += "; "
			}
			run.ErrorMessage += fmt.Sprintf("%s: %v", r.Collection, r.Err)
			e.log.Error("sync collection failed", "collection", r.Collection, "error", r.Err)
		}
	}

	now := time.Now().UTC()
	run.CompletedAt = &now
	switch {
	case runCtx.Err() == context.Canceled:
		run.Status = models.SyncCancelled
	case warnings:
		run.Status = models.SyncCompletedWithWarnings
	default:
		run.Status = models.SyncCompleted
	}
	if err := e.store.FinishSyncRun(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// Cancel cooperatively stops a running sync: no further pages are
// pulled, and a batch not yet committed is rolled back rather than
// written (§4.B, §6.3 `sync/<id>/cancel`).
func (e *Engine) Cancel(syncID string) bool {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	cancel, ok := e.cancels[syncID]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (e *Engine) syncCollection(ctx context.Context, collection string, mode models.SyncMode) Result {
	res := Result{Collection: collection}

	cp, err := e.store.GetCheckpoint(ctx, collection)
	if err != nil {
		res.Err = fmt.Errorf("load checkpoint: %w", err)
		return res
	}
	if mode == models.SyncFull {
		cp = &models.SyncCheckpoint{Collection: collection}
	}

	pull := e.pullerFor(collection)
	if pull == nil {
		res.Err = fmt.Errorf("no source adapter configured for %q", collection)
		return res
	}

	policy := retry.DefaultPolicy()
	cursor := cp.LastCursor
	var newWatermark *time.Time
	var batch []store.StagingItem

	for {
		if ctx.Err() != nil {
			break
		}

		page, err := e.pullWithRetry(ctx, collection, policy, func() (interface{}, error) {
			return pull(ctx, cp.LastEditedWatermark, cursor)
		})
		if err != nil {
			e.store.IncrementCheckpointFailures(ctx, collection)
			res.Err = err
			return res
		}
		for _, item := range page.items {
			item.Collection = collection
			if item.Tombstoned {
				if tombErr := e.store.TombstoneStagingItem(ctx, collection, item.ExternalID); tombErr != nil {
					res.Err = tombErr
					return res
				}
				res.Tombstoned++
				continue
			}
			batch = append(batch, item)
		}
		if page.watermark != nil && (newWatermark == nil || page.watermark.After(*newWatermark)) {
			newWatermark = page.watermark
		}

		if len(batch) >= BatchSize || page.nextCursor == "" {
			n, commitErr := e.commitBatch(ctx, batch)
			if commitErr != nil {
				res.Err = commitErr
				return res
			}
			res.Created += n
			batch = nil
		}

		cursor = page.nextCursor
		if cursor == "" {
			break
		}
	}

	if len(batch) > 0 {
		n, commitErr := e.commitBatch(ctx, batch)
		if commitErr != nil {
			res.Err = commitErr
			return res
		}
		res.Created += n
	}

	if res.Err == nil {
		cp.LastCursor = cursor
		if newWatermark != nil {
			cp.LastEditedWatermark = newWatermark
		}
		now := time.Now().UTC()
		cp.LastSuccessAt = &now
		cp.ConsecutiveFailures = 0
		if saveErr := e.store.SaveCheckpoint(ctx, cp); saveErr != nil {
			res.Err = saveErr
		}
	}
	return res
}

// pullWithRetry runs pullOnce (a single breaker-guarded page pull) up to
// policy.MaxAttempts times, sleeping the backoff delay between attempts,
// and returns an error only once every attempt is exhausted or the
// failure is permanent; the caller then bumps the checkpoint's failure
// counter (§4.B, §7, consecutive-failure Open Question).
func (e *Engine) pullWithRetry(ctx context.Context, collection string, policy retry.Policy, pullOnce func() (interface{}, error)) (pullPage, error) {
	var page pullPage
	err := retry.Do(func(d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, policy, func(attempt int) error {
		result, err := e.breaker(collection).Execute(pullOnce)
		if err != nil {
			return err
		}
		page = result.(pullPage)
		return nil
	})
	return page, err
}

// commitBatch writes a batch of staging rows; per spec.md §4.B this is
// all-or-nothing — a constraint failure partway through rolls the whole
// batch back rather than leaving a half-applied page.
func (e *Engine) commitBatch(ctx context.Context, batch []store.StagingItem) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("commit batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, item := range batch {
		if err := e.store.UpsertStagingItemTx(ctx, tx, item); err != nil {
			return 0, fmt.Errorf("commit batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: commit tx: %w", err)
	}
	return len(batch), nil
}

type pullPage struct {
	items      []store.StagingItem
	nextCursor string
	watermark  *time.Time
}

type pullFunc func(ctx context.Context, since *time.Time, cursor string) (pullPage, error)

func (e *Engine) pullerFor(collection string) pullFunc {
	src, ok := e.sources[collection]
	if !ok {
		return nil
	}
	switch src.Kind {
	case SourceKindNotion:
		if e.notion == nil {
			return nil
		}
		return func(ctx context.Context, since *time.Time, cursor string) (pullPage, error) {
			return e.pullNotion(ctx, src.ExternalID, since, cursor)
		}
	case SourceKindAnki:
		if e.anki == nil {
			return nil
		}
		return func(ctx context.Context, since *time.Time, cursor string) (pullPage, error) {
			return e.pullAnki(ctx, src.ExternalID, cursor)
		}
	default:
		return nil
	}
}

// pullNotion fetches one page of a Notion database query and converts
// it into staging rows (§4.B, §6.1). The page's property payload is
// stored verbatim; Transform owns interpreting it (§4.C).
func (e *Engine) pullNotion(ctx context.Context, databaseID string, since *time.Time, cursor string) (pullPage, error) {
	pages, next, watermark, err := e.notion.ListPages(ctx, databaseID, since, cursor)
	if err != nil {
		return pullPage{}, err
	}
	items := make([]store.StagingItem, len(pages))
	for i, p := range pages {
		lastEdited := p.LastEditedTime
		items[i] = store.StagingItem{
			ExternalID:     p.ID,
			Payload:        p.Properties,
			LastEditedTime: &lastEdited,
		}
	}
	var wm *time.Time
	if !watermark.IsZero() {
		wm = &watermark
	}
	return pullPage{items: items, nextCursor: next, watermark: wm}, nil
}

// pullAnki fetches every note in a deck in one pass — AnkiConnect has
// no cursor concept, so the "page" is the whole deck and nextCursor is
// always empty (§4.B, §6.2).
func (e *Engine) pullAnki(ctx context.Context, deck string, cursor string) (pullPage, error) {
	noteIDs, err := e.anki.ListNotes(ctx, deck)
	if err != nil {
		return pullPage{}, err
	}
	if len(noteIDs) == 0 {
		return pullPage{}, nil
	}
	notes, err := e.anki.NotesInfo(ctx, noteIDs)
	if err != nil {
		return pullPage{}, err
	}

	items := make([]store.StagingItem, 0, len(notes))
	for _, n := range notes {
		payload, err := noteJSON(n)
		if err != nil {
			return pullPage{}, fmt.Errorf("marshal anki note %d: %w", n.NoteID, err)
		}
		items = append(items, store.StagingItem{
			ExternalID: fmt.Sprintf("%d", n.NoteID),
			Payload:    payload,
		})
	}
	return pullPage{items: items}, nil
}

func noteJSON(n anki.Note) ([]byte, error) {
	fields := make(map[string]string, len(n.Fields))
	for name, v := range n.Fields {
		fields[name] = v.Value
	}
	return json.Marshal(struct {
		NoteID    int64             `json:"note_id"`
		ModelName string            `json:"model_name"`
		Fields    map[string]string `json:"fields"`
		Tags      []string          `json:"tags"`
	}{NoteID: n.NoteID, ModelName: n.ModelName, Fields: fields, Tags: n.Tags})
}
