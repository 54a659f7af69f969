package utils

import (
	"github.com/gofiber/fiber/v2"

	apperrors "coordy/internal/errors"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// Created sends a JSON response with status 201.
func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{"error": message, "code": "BAD_REQUEST"})
}

// Unauthorized sends a JSON error response with status 401.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusUnauthorized, fiber.Map{"error": message, "code": "UNAUTHORIZED"})
}

// Forbidden sends a JSON error response with status 403.
func Forbidden(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusForbidden, fiber.Map{"error": message, "code": "FORBIDDEN"})
}

// TooManyRequests sends a JSON error response with status 429.
func TooManyRequests(c *fiber.Ctx) error {
	return Respond(c, fiber.StatusTooManyRequests, fiber.Map{
		"error": "Too many requests. Please try again later.",
		"code":  "RATE_LIMITED",
	})
}

// Error renders err with the status of its domain code. Errors without a
// code are reported as a generic internal error so store details do not
// leak to clients.
func Error(c *fiber.Ctx, err error) error {
	status := apperrors.HTTPStatus(err)
	code := apperrors.Code(err)
	message := err.Error()
	if code == "" || code == apperrors.ErrStoreFailure.Code {
		if code == "" {
			code = "INTERNAL"
		}
		message = "internal server error"
	}
	return Respond(c, status, fiber.Map{"error": message, "code": code})
}
