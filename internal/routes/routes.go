// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"time"

	"coordy/internal/handlers"
	"coordy/internal/middleware"
	"coordy/internal/models"
	"coordy/internal/services/approval"
	"coordy/internal/services/expiration"
	"coordy/internal/services/reservation"
	"coordy/internal/services/wallet"
	"coordy/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

// ChargeLimit is the number of charge requests a client may make per
// ChargeWindow.
const (
	ChargeLimit  = 10
	ChargeWindow = time.Minute
)

// Dependencies are the services the routes are served from.
type Dependencies struct {
	Wallet       wallet.Service
	Expiration   *expiration.Processor
	Approval     *approval.Service
	Reservations *reservation.Service

	JWTSecret string
	JWTIssuer string

	HealthChecks map[string]handlers.Pinger
	Logger       *zap.Logger
}

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, deps Dependencies) {
	authMiddleware := middleware.NewAuthMiddleware(deps.JWTSecret, deps.JWTIssuer, deps.Logger)

	pointsHandler := handlers.NewPointsHandler(deps.Wallet, deps.Expiration)
	adminHandler := handlers.NewAdminHandler(deps.Approval, deps.Wallet)
	reservationHandler := handlers.NewReservationHandler(deps.Reservations)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)

	api := app.Group("/api")

	// Public routes
	api.Get("/health", healthHandler.HealthCheck)

	// Admin routes are registered before the client groups so the
	// admin check runs right after authentication.
	admin := api.Group("/admin", authMiddleware.Handler, middleware.AdminOnly(deps.Logger))
	setupAdminRoutes(admin, adminHandler)

	points := api.Group("/points", authMiddleware.Handler)
	setupPointsRoutes(points, pointsHandler)

	reservations := api.Group("/reservations", authMiddleware.Handler)
	setupReservationRoutes(reservations, reservationHandler)
}

func setupPointsRoutes(router fiber.Router, h *handlers.PointsHandler) {
	read := middleware.HasPermission(models.PermissionWalletRead)
	write := middleware.HasPermission(models.PermissionWalletWrite)

	router.Get("/wallet", read, h.GetWallet)
	router.Get("/transactions", read, h.GetTransactions)
	router.Get("/expiring", read, h.GetExpiring)

	router.Post("/charge", write, chargeLimiter(), h.Charge)
	router.Post("/use", write, h.Use)
	router.Post("/expire", write, h.ProcessExpired)
}

func setupReservationRoutes(router fiber.Router, h *handlers.ReservationHandler) {
	write := middleware.HasPermission(models.PermissionReservationWrite)

	router.Get("/", h.List)
	router.Get("/:id", h.Get)
	router.Post("/", write, h.Create)
	router.Post("/:id/cancel", write, h.Cancel)
}

func setupAdminRoutes(router fiber.Router, h *handlers.AdminHandler) {
	points := router.Group("/points")
	points.Get("/pending", h.ListPendingCharges)
	points.Post("/transactions/:id/approve", middleware.HasPermission(models.PermissionWriteAdmin), h.ApproveCharge)
	points.Post("/transactions/:id/reject", middleware.HasPermission(models.PermissionWriteAdmin), h.RejectCharge)
	points.Get("/reconcile/:clientId", h.Reconcile)

	router.Get("/wallets", middleware.HasPermission(models.PermissionReadAdmin), h.ListWallets)
}

// chargeLimiter rate limits charges per authenticated client. It must run
// after the auth middleware.
func chargeLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        ChargeLimit,
		Expiration: ChargeWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id, ok := c.Locals(middleware.ClientIDKey).(string); ok && id != "" {
				return "charge:" + id
			}
			return "charge-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.TooManyRequests(c)
		},
	})
}
