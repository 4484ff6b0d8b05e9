package utils

import "github.com/gofiber/fiber/v2"

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}

	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
	})
}

// FailureResponse is the error body used by the evaluation endpoint.
type FailureResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// SendFeedback sends the evaluation success body {"feedback": ...}.
func SendFeedback(c *fiber.Ctx, feedback interface{}) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"feedback": feedback})
}

// SendFailure sends {"error": message, "details": details} with the given status code.
func SendFailure(c *fiber.Ctx, status int, message, details string) error {
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(FailureResponse{
		Error:   message,
		Details: details,
	})
}
