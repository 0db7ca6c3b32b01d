package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	// ProjectIDHeader selects the project when the project_id query parameter is absent.
	ProjectIDHeader = "X-Project-ID"
	// ProjectIDQuery is the query parameter naming the project.
	ProjectIDQuery = "project_id"
	// ProjectIDLocalKey is the key used to store the resolved project id in context locals.
	ProjectIDLocalKey = "project_id"
)

// ProjectID resolves the project a request operates on: the project_id query
// parameter first, then the X-Project-ID header, then defaultID.
// The id outlives the request as a registry key, so it is copied out of the request buffer.
func ProjectID(defaultID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Query(ProjectIDQuery))
		if id == "" {
			id = strings.TrimSpace(c.Get(ProjectIDHeader))
		}
		if id == "" {
			id = defaultID
		}
		c.Locals(ProjectIDLocalKey, utils.CopyString(id))
		return c.Next()
	}
}

// ProjectIDFromCtx returns the project id stored by ProjectID, or "" when the middleware did not run.
func ProjectIDFromCtx(c *fiber.Ctx) string {
	id, _ := c.Locals(ProjectIDLocalKey).(string)
	return id
}
