// Package httpapi exposes the sync/clean/review control surface over
// HTTP (§6.4), mirroring the teacher's fiber-based handler pattern
// adapted to the problem-document error contract of §7.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atomsync/atomsync/internal/clients/anki"
	"github.com/atomsync/atomsync/internal/clients/notion"
	"github.com/atomsync/atomsync/internal/llm"
	"github.com/atomsync/atomsync/internal/metrics"
	"github.com/atomsync/atomsync/internal/orchestrator"
	"github.com/atomsync/atomsync/internal/rewrite"
	"github.com/atomsync/atomsync/internal/store"
	"github.com/atomsync/atomsync/internal/sync"
	"github.com/atomsync/atomsync/internal/transform"
)

// Server wires every component the HTTP surface fronts.
type Server struct {
	store       *store.Store
	syncEngine  *sync.Engine
	pipeline    *orchestrator.Pipeline
	rewrite     *rewrite.Engine
	notion      *notion.Client
	anki        *anki.Client
	llm         *llm.Client
	collections []transform.Config
	metrics     *metrics.Registry
	log         *slog.Logger
}

// New builds a Server. Any of notion/anki/llm may be nil if that
// external integration isn't configured — /health reports it as such.
func New(
	st *store.Store,
	syncEngine *sync.Engine,
	pipeline *orchestrator.Pipeline,
	rewriteEngine *rewrite.Engine,
	notionClient *notion.Client,
	ankiClient *anki.Client,
	llmClient *llm.Client,
	collections []transform.Config,
	reg *metrics.Registry,
	log *slog.Logger,
) *Server {
	return &Server{
		store:       st,
		syncEngine:  syncEngine,
		pipeline:    pipeline,
		rewrite:     rewriteEngine,
		notion:      notionClient,
		anki:        ankiClient,
		llm:         llmClient,
		collections: collections,
		metrics:     reg,
		log:         log,
	}
}

// Router builds the fiber.App with every route in §6.4 registered.
func (s *Server) Router() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return internalError(c, err)
		},
	})

	app.Use(s.instrument)

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/api/sync/notion", s.handleStartSync)
	app.Get("/api/sync/status", s.handleSyncHistory)
	app.Get("/api/sync/status/:id", s.handleSyncStatus)
	app.Get("/api/sync/history", s.handleSyncHistory)
	app.Post("/api/sync/:id/cancel", s.handleCancelSync)

	app.Post("/api/clean/run", s.handleCleanRun)

	app.Get("/api/review", s.handleListReview)
	app.Post("/api/review/:id/approve", s.handleApproveReview)
	app.Post("/api/review/:id/reject", s.handleRejectReview)

	return app
}

func (s *Server) instrument(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	route := c.Route().Path
	status := c.Response().StatusCode()
	if s.metrics != nil {
		s.metrics.HTTPRequestsTotal.WithLabelValues(route, statusLabel(status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
	return err
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

type componentHealth struct {
	Storage string `json:"storage"`
	Notion  string `json:"notion"`
	Anki    string `json:"anki"`
	AI      string `json:"ai"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	storage := "ok"
	if err := s.store.DB().PingContext(ctx); err != nil {
		storage = "unavailable"
	}

	comps := componentHealth{
		Storage: storage,
		Notion:  presence(s.notion != nil),
		Anki:    presence(s.anki != nil),
		AI:      presence(s.llm != nil),
	}

	status := "healthy"
	if storage != "ok" {
		status = "unhealthy"
	}

	return c.JSON(fiber.Map{"status": status, "components": comps})
}

func presence(configured bool) string {
	if configured {
		return "configured"
	}
	return "not_configured"
}

