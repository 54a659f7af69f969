package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coordy/internal/config"
	"coordy/internal/events"
	"coordy/internal/handlers"
	"coordy/internal/logging"
	"coordy/internal/repositories"
	"coordy/internal/repositories/cache"
	"coordy/internal/repositories/memory"
	"coordy/internal/routes"
	"coordy/internal/services/approval"
	"coordy/internal/services/expiration"
	"coordy/internal/services/payment"
	"coordy/internal/services/reservation"
	"coordy/internal/services/wallet"
	"coordy/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// main initializes and starts the HTTP server.
// It performs the following setup:
// - Loads configuration
// - Opens the ledger store and the wallet cache
// - Wires services and starts the expiration scheduler
// - Serves routes until SIGINT/SIGTERM
func main() {
	config.LoadEnv()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zl, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Pinger{}

	// Ledger store
	var (
		ledger       repositories.LedgerRepository
		reservations repositories.ReservationRepository
		db           *gorm.DB
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		zl.Warn("using in-memory ledger store, data is lost on restart")
		ledger = memory.NewLedger()
		reservations = memory.NewReservations()
		checks["database"] = nil
	default:
		db, err = repositories.InitDB(cfg.DB)
		if err != nil {
			zl.Fatal("database init failed", zap.Error(err))
		}
		zl.Info("connected to database", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))
		ledger = repositories.NewLedgerRepository(db)
		reservations = repositories.NewReservationRepository(db)
		sqlDB, err := db.DB()
		if err != nil {
			zl.Fatal("failed to get database instance", zap.Error(err))
		}
		checks["database"] = sqlDB.PingContext
		go logPoolStats(ctx, zl, func() []zap.Field {
			stats := sqlDB.Stats()
			return []zap.Field{
				zap.String("pool", "postgres"),
				zap.Int("open", stats.OpenConnections),
				zap.Int("idle", stats.Idle),
				zap.Int("in_use", stats.InUse),
				zap.Int64("wait_count", stats.WaitCount),
				zap.Duration("wait_duration", stats.WaitDuration),
			}
		})
	}

	// Wallet snapshot cache
	var walletCache cache.WalletCache = cache.NoopCache{}
	var cacheService *cache.CacheService
	if cfg.Redis.Enabled() {
		cacheService = cache.NewCacheService(cache.NewRedisClient(cfg.Redis), cfg.Redis.TTL)
		if err := cacheService.HealthCheck(ctx); err != nil {
			zl.Warn("redis unavailable, wallet cache disabled", zap.Error(err))
			_ = cacheService.Close()
			cacheService = nil
		} else {
			walletCache = cacheService
			checks["redis"] = cacheService.HealthCheck
			go logPoolStats(ctx, zl, func() []zap.Field {
				stats := cacheService.GetStats()
				return []zap.Field{
					zap.String("pool", "redis"),
					zap.Uint32("hits", stats.Hits),
					zap.Uint32("misses", stats.Misses),
					zap.Uint32("timeouts", stats.Timeouts),
					zap.Uint32("total_conns", stats.TotalConns),
					zap.Uint32("idle_conns", stats.IdleConns),
				}
			})
		}
	} else {
		checks["redis"] = nil
	}

	// Card gateway
	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe, zl)
	} else {
		zl.Warn("STRIPE_SECRET_KEY not set, card charges are accepted offline")
		gateway = payment.OfflineGateway{}
	}

	publisher := events.New(cfg.Kafka, zl)

	// Services
	walletService := wallet.NewService(ledger, walletCache, gateway, publisher, wallet.WalletConfig{
		DefaultExpirationDays: cfg.Points.DefaultExpirationDays,
		MaxRetries:            cfg.Points.MaxRetries,
		MaxChargeAmount:       cfg.Points.MaxChargeAmount,
	}, zl)
	processor := expiration.NewProcessor(ledger, walletCache, publisher, expiration.Config{
		MaxRetries:            cfg.Points.MaxRetries,
		ExpiringThresholdDays: cfg.Points.ExpiringThresholdDays,
	}, zl)
	approvalService := approval.NewService(ledger, walletCache, publisher, approval.Config{
		MaxRetries: cfg.Points.MaxRetries,
	}, zl)
	reservationService := reservation.NewService(reservations, walletService, zl)

	scheduler := expiration.NewScheduler(processor, ledger, cfg.Points.SweepInterval, cfg.Points.SweepBatchSize, zl)
	scheduler.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "coordy-points",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,OPTIONS",
		AllowCredentials: true,
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Use("/api", limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.TooManyRequests(c)
		},
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		Wallet:       walletService,
		Expiration:   processor,
		Approval:     approvalService,
		Reservations: reservationService,
		JWTSecret:    cfg.JWTSecret,
		JWTIssuer:    cfg.JWTIssuer,
		HealthChecks: checks,
		Logger:       zl,
	})

	go func() {
		zl.Info("http server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		zl.Error("http shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	if err := publisher.Close(); err != nil {
		zl.Warn("failed to close event publisher", zap.Error(err))
	}
	if cacheService != nil {
		if err := cacheService.Close(); err != nil {
			zl.Warn("failed to close redis connection", zap.Error(err))
		}
	}
	if err := repositories.Close(db); err != nil {
		zl.Warn("failed to close database connection", zap.Error(err))
	}
}

// logPoolStats reports connection pool counters every minute.
func logPoolStats(ctx context.Context, zl *zap.Logger, fields func() []zap.Field) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			zl.Debug("connection pool stats", fields()...)
		}
	}
}
