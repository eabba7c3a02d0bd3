package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atomsync/atomsync/internal/clients/anki"
	"github.com/atomsync/atomsync/internal/clients/notion"
	"github.com/atomsync/atomsync/internal/config"
	"github.com/atomsync/atomsync/internal/llm"
	"github.com/atomsync/atomsync/internal/metrics"
	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/orchestrator"
	"github.com/atomsync/atomsync/internal/quality"
	"github.com/atomsync/atomsync/internal/ratelimit"
	"github.com/atomsync/atomsync/internal/rewrite"
	"github.com/atomsync/atomsync/internal/store"
	"github.com/atomsync/atomsync/internal/sync"
	"github.com/atomsync/atomsync/internal/transform"
	"github.com/atomsync/atomsync/internal/writeprotect"
)

// app bundles every component a subcommand might need, wired once from
// the loaded config — mirrors cmd/cortex/main.go's component wiring.
type app struct {
	cfg         *config.Config
	store       *store.Store
	notion      *notion.Client
	anki        *anki.Client
	llm         *llm.Client
	syncEngine  *sync.Engine
	collections []transform.Config
	pipeline    *orchestrator.Pipeline
	rewrite     *rewrite.Engine
	metrics     *metrics.Registry
	log         *slog.Logger
}

func configureLogger(cfg config.Log) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	out := os.Stderr
	if cfg.Path != "" {
		if f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			out = f
		}
	}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// collectionsFromConfig derives one transform.Config per Notion
// database configured plus a fixed "anki" collection when AnkiConnect
// is configured — the mapping tables themselves follow the field
// conventions transform/mapping.go documents for each source kind.
func collectionsFromConfig(cfg *config.Config) []transform.Config {
	var out []transform.Config
	for name := range cfg.Notion.DatabaseIDs {
		out = append(out, transform.Config{
			Collection:           name,
			Kind:                 models.SourceNotion,
			Fields:               transform.FieldMap{FrontField: "Front", BackField: "Back", TypeField: "Type"},
			DefaultType:          models.AtomFlashcard,
			DefaultKnowledgeType: models.KnowledgeDeclarative,
		})
	}
	if cfg.Anki.ConnectURL != "" {
		out = append(out, transform.Config{
			Collection:           "anki",
			Kind:                 models.SourceAnki,
			Fields:               transform.FieldMap{FrontField: "Front", BackField: "Back"},
			DefaultType:          models.AtomFlashcard,
			DefaultKnowledgeType: models.KnowledgeDeclarative,
		})
	}
	return out
}

func qualityThresholds(q config.Quality) quality.Thresholds {
	th := quality.DefaultThresholds()
	if q.FrontOptimalWords != 0 {
		th.FrontOptimalWords = q.FrontOptimalWords
	}
	if q.FrontWarnWords != 0 {
		th.FrontWarnWords = q.FrontWarnWords
	}
	if q.FrontMaxWords != 0 {
		th.FrontMaxWords = q.FrontMaxWords
	}
	if q.BackOptimalWords != 0 {
		th.BackOptimalWords = q.BackOptimalWords
	}
	if q.BackWarnWords != 0 {
		th.BackWarnWords = q.BackWarnWords
	}
	if q.BackMaxWords != 0 {
		th.BackMaxWords = q.BackMaxWords
	}
	if q.BackMaxChars != 0 {
		th.BackMaxChars = q.BackMaxChars
	}
	return th
}

// buildApp loads config, opens the store, and constructs every
// component a subcommand might touch. Clients for unconfigured
// sources stay nil; downstream code already tolerates that (sync.New,
// httpapi health check).
func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, configErr(err)
	}

	log := configureLogger(cfg.Log)
	slog.SetDefault(log)

	st, err := store.Open(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	protect := writeprotect.New(cfg.Notion.WriteProtected)
	limiter := ratelimit.NewRegistry(map[string]float64{
		"notion": cfg.Notion.RateLimitRPS,
		"ai":     cfg.AI.RateLimitRPS,
	})

	var notionClient *notion.Client
	if cfg.Notion.APIKey != "" {
		notionClient = notion.New("https://api.notion.com/v1", cfg.Notion.APIKey, limiter, protect)
	}
	var ankiClient *anki.Client
	if cfg.Anki.ConnectURL != "" {
		ankiClient = anki.New(cfg.Anki.ConnectURL, limiter)
	}
	var llmClient *llm.Client
	if cfg.AI.BaseURL != "" {
		llmClient = llm.New(cfg.AI.BaseURL, cfg.AI.APIKey)
	}

	collections := collectionsFromConfig(cfg)
	sources := make(map[string]sync.CollectionSource, len(collections))
	for _, c := range collections {
		kind := sync.SourceKindNotion
		if c.Kind == models.SourceAnki {
			kind = sync.SourceKindAnki
		}
		sources[c.Collection] = sync.CollectionSource{Kind: kind, ExternalID: cfg.Notion.DatabaseIDs[c.Collection]}
	}
	syncEngine := sync.New(notionClient, ankiClient, st, log.With("component", "sync"), sources)

	th := qualityThresholds(cfg.Quality)
	mode := quality.Mode(cfg.Quality.Mode)
	transformEngine := transform.New(st, log.With("component", "transform"), th, mode)

	var rewriteEngine *rewrite.Engine
	if llmClient != nil {
		rewriteEngine = rewrite.New(llmClient, st, th)
	}

	pipeline := orchestrator.New(st, transformEngine, rewriteEngine, th, cfg.Quality.FuzzyThreshold, log.With("component", "orchestrator"))
	reg := metrics.New(prometheus.NewRegistry())

	return &app{
		cfg:         cfg,
		store:       st,
		notion:      notionClient,
		anki:        ankiClient,
		llm:         llmClient,
		syncEngine:  syncEngine,
		collections: collections,
		pipeline:    pipeline,
		rewrite:     rewriteEngine,
		metrics:     reg,
		log:         log,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}
