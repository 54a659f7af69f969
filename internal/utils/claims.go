package utils

import (
	"errors"

	"coordy/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ClaimsKey is the fiber Locals key holding the authenticated claims.
const ClaimsKey = "claims"

// GetClientClaims extracts the identity claims from the Fiber context.
// It returns an error if the claims are missing or of an invalid type.
func GetClientClaims(c *fiber.Ctx) (*models.ClientClaims, error) {
	v := c.Locals(ClaimsKey)
	if v == nil {
		return nil, errors.New("claims not found in context")
	}

	claims, ok := v.(*models.ClientClaims)
	if !ok || claims.ClientID() == "" {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
