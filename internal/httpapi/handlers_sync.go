package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/atomsync/atomsync/internal/models"
)

type startSyncRequest struct {
	Incremental bool     `json:"incremental"`
	Databases   []string `json:"databases"`
	DryRun      bool     `json:"dry_run"`
}

// handleStartSync starts an async sync run and returns its ID
// immediately (§6.4 `POST /api/sync/notion`).
func (s *Server) handleStartSync(c *fiber.Ctx) error {
	var req startSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	collections := req.Databases
	if len(collections) == 0 {
		for _, cfg := range s.collections {
			collections = append(collections, cfg.Collection)
		}
	}
	if len(collections) == 0 {
		return badRequest(c, "no collections configured or requested")
	}

	if req.DryRun {
		return c.JSON(fiber.Map{"sync_id": "", "dry_run": true, "collections": collections})
	}

	mode := models.SyncFull
	if req.Incremental {
		mode = models.SyncIncremental
	}

	syncID, err := s.syncEngine.StartAsync(c.Context(), mode, collections)
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"sync_id": syncID})
}

// handleSyncStatus returns one sync run's record (§6.4
// `GET /api/sync/status/<id>`).
func (s *Server) handleSyncStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	run, err := s.store.GetSyncRun(c.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return notFound(c, "sync run not found")
		}
		return internalError(c, err)
	}
	return c.JSON(run)
}

// handleSyncHistory returns recent sync runs, optionally filtered by
// status (§6.4 `GET /api/sync/history?status=&limit=`).
func (s *Server) handleSyncHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	statusFilter := c.Query("status")

	runs, err := s.store.ListRecentSyncRuns(c.Context(), limit)
	if err != nil {
		return internalError(c, err)
	}

	if statusFilter != "" {
		filtered := make([]models.SyncRun, 0, len(runs))
		for _, r := range runs {
			if string(r.Status) == statusFilter {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}

	return c.JSON(fiber.Map{"runs": runs, "count": len(runs)})
}

// handleCancelSync cooperatively cancels a running sync (§6.4
// `POST /api/sync/<id>/cancel`).
func (s *Server) handleCancelSync(c *fiber.Ctx) error {
	id := c.Params("id")
	if ok := s.syncEngine.Cancel(id); !ok {
		return notFound(c, "no running sync with that id")
	}
	return c.JSON(fiber.Map{"sync_id": id, "cancelled": true})
}
