package httpapi

import "github.com/gofiber/fiber/v2"

// problem is the `{error_code, message, details}` document every HTTP
// endpoint returns on failure (§6.4, §7).
type problem struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

func sendProblem(c *fiber.Ctx, status int, errorCode, message string, details ...string) error {
	p := problem{ErrorCode: errorCode, Message: message}
	if len(details) > 0 {
		p.Details = details[0]
	}
	return c.Status(status).JSON(p)
}

func badRequest(c *fiber.Ctx, message string) error {
	return sendProblem(c, fiber.StatusBadRequest, "BadRequest", message)
}

func notFound(c *fiber.Ctx, message string) error {
	return sendProblem(c, fiber.StatusNotFound, "NotFound", message)
}

func internalError(c *fiber.Ctx, err error) error {
	return sendProblem(c, fiber.StatusInternalServerError, "InternalError", "request failed", err.Error())
}
