package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docsearch/internal/http/middleware"
	"docsearch/internal/model"
	"docsearch/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "VALIDATION_FAILED", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorDetails(c, status, code, message, nil)
}

func writeErrorDetails(c *fiber.Ctx, status int, code, message string, details any) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	return c.Status(status).JSON(res)
}

// validationStatus picks the status for a rejected request from its first issue.
func validationStatus(issues []model.ValidationIssue) int {
	if len(issues) == 0 {
		return fiber.StatusBadRequest
	}
	switch issues[0].Rule {
	case model.RuleSize:
		return fiber.StatusRequestEntityTooLarge
	case model.RuleExtension, model.RuleMIMEType:
		return fiber.StatusUnsupportedMediaType
	default:
		return fiber.StatusBadRequest
	}
}

// writeServiceError translates the documents service error taxonomy into HTTP responses.
func writeServiceError(c *fiber.Ctx, err error) error {
	var (
		ve *service.ValidationError
		nf *service.NotFoundError
		pu *service.PartialUploadError
		pe *service.ProviderError
	)
	switch {
	case errors.As(err, &ve):
		return writeErrorDetails(c, validationStatus(ve.Issues), "VALIDATION_FAILED", "request rejected by validation", ve.Issues)
	case errors.As(err, &nf):
		if len(nf.Missing) > 0 {
			return writeErrorDetails(c, fiber.StatusNotFound, "NOT_FOUND", "files not found", fiber.Map{"missing": nf.Missing})
		}
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "project has no uploaded files")
	case errors.Is(err, service.ErrUnreadableInput):
		return writeError(c, fiber.StatusBadRequest, "UNREADABLE_INPUT", "uploaded file could not be read")
	case errors.Is(err, service.ErrArchiveDisabled):
		return writeError(c, fiber.StatusNotImplemented, "ARCHIVE_DISABLED", "file archive is not configured")
	case errors.As(err, &pu):
		return writeErrorDetails(c, fiber.StatusInternalServerError, "PARTIAL_UPLOAD", "upload stopped before the batch completed",
			fiber.Map{"committed": pu.Committed})
	case errors.As(err, &pe):
		if pe.Timeout() {
			return writeError(c, fiber.StatusInternalServerError, "PROVIDER_TIMEOUT", "search provider timed out")
		}
		return writeError(c, fiber.StatusInternalServerError, "PROVIDER_ERROR", "search provider failed")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "REQUEST_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
