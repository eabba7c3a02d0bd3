package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/orchestrator"
)

type cleanRunRequest struct {
	EnableRewrite bool   `json:"enable_rewrite"`
	MinGrade      string `json:"min_grade"`
	DryRun        bool   `json:"dry_run"`
}

// handleCleanRun runs the cleaning pipeline synchronously and returns
// its tallies (§6.4 `POST /api/clean/run`).
func (s *Server) handleCleanRun(c *fiber.Ctx) error {
	var req cleanRunRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	opts := orchestrator.Options{
		EnableRewrite: req.EnableRewrite,
		MinGrade:      models.QualityGrade(req.MinGrade),
		DryRun:        req.DryRun,
	}

	runID := uuid.NewString()
	summary, err := s.pipeline.Run(c.Context(), runID, s.collections, opts)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"run_id":             runID,
		"status":             summary.Status,
		"transform_upserted": summary.TransformUpserted,
		"transform_skipped":  summary.TransformSkipped,
		"reanalyzed":         summary.Reanalyzed,
		"duplicate_groups":   summary.DuplicateGroups,
		"rewrite_enqueued":   summary.RewriteEnqueued,
		"warnings":           summary.Warnings,
	})
}
