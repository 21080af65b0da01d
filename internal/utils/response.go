package utils

import "github.com/gofiber/fiber/v2"

// ErrorResponse is the structured body returned for request and
// configuration errors. Successful evaluations return the result shape
// itself, unwrapped, so clients keep a single rendering path.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(ErrorResponse{Error: message})
}

// SendErrorWithDetails sends an error response carrying extra diagnostics.
func SendErrorWithDetails(c *fiber.Ctx, status int, message, details string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(ErrorResponse{Error: message, Details: details})
}
