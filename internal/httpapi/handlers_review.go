package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

// handleListReview lists pending review-queue items (§6.4
// `GET /api/review?status=`). Only `pending` (the default, and the
// store's only indexed listing) is supported; any other status value
// returns an empty list rather than an error.
func (s *Server) handleListReview(c *fiber.Ctx) error {
	status := c.Query("status", "pending")
	if status != "pending" {
		return c.JSON(fiber.Map{"items": []string{}, "count": 0})
	}

	items, err := s.store.ListPendingReviews(c.Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// handleApproveReview applies a pending suggestion (§6.4
// `POST /api/review/<id>/approve`).
func (s *Server) handleApproveReview(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.rewrite.Approve(c.Context(), id); err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(fiber.Map{"id": id, "status": "approved"})
}

// handleRejectReview rejects a pending suggestion with an operator
// reason (§6.4 `POST /api/review/<id>/reject`).
func (s *Server) handleRejectReview(c *fiber.Ctx) error {
	id := c.Params("id")
	var req rejectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := s.rewrite.Reject(c.Context(), id, req.Reason); err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(fiber.Map{"id": id, "status": "rejected"})
}
