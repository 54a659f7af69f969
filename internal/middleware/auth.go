// Package middleware provides HTTP middleware components for the application.
// It includes identity-provider token validation and role checks for the
// fiber web framework.
package middleware

import (
	"strings"

	"coordy/internal/logging"
	"coordy/internal/models"
	"coordy/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ClientIDKey is the Locals key holding the authenticated client id.
const ClientIDKey = "clientID"

// AuthMiddleware validates bearer tokens minted by the identity provider
// and adds the client claims to the request context.
type AuthMiddleware struct {
	secret string
	issuer string
	logger *zap.Logger
}

func NewAuthMiddleware(secret, issuer string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: secret,
		issuer: issuer,
		logger: logging.OrNop(logger),
	}
}

// Handler checks for a Bearer token with a valid signature and expiry.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return utils.Unauthorized(c, "missing authorization header")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return utils.Unauthorized(c, "invalid authorization format")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := utils.ParseToken(tokenString, m.secret, m.issuer)
	if err != nil {
		m.logger.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
		return utils.Unauthorized(c, "invalid token")
	}

	c.Locals(utils.ClaimsKey, claims)
	c.Locals(ClientIDKey, claims.ClientID())

	return c.Next()
}

// AdminOnly verifies that the request carries admin claims.
func AdminOnly(logger *zap.Logger) fiber.Handler {
	logger = logging.OrNop(logger)
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetClientClaims(c)
		if err != nil {
			return utils.Unauthorized(c, "invalid claims")
		}
		if !claims.IsAdmin() {
			logger.Warn("admin access denied",
				zap.String("client_id", claims.ClientID()),
				zap.String("role", claims.Role),
				zap.String("path", c.Path()))
			return utils.Forbidden(c, "insufficient permissions")
		}
		return c.Next()
	}
}

// HasPermission returns a middleware that checks for a specific permission.
func HasPermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetClientClaims(c)
		if err != nil {
			return utils.Unauthorized(c, "unauthorized")
		}
		if claims.Role == models.RoleAdmin || claims.HasPermission(permission) {
			return c.Next()
		}
		return utils.Forbidden(c, "insufficient permissions")
	}
}
