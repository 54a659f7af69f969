package config

import (
	"fmt"
	"time"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds a libpq style connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a Redis host was configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

type KafkaConfig struct {
	Brokers     []string
	LedgerTopic string
}

// PointsConfig holds the wallet policy knobs.
type PointsConfig struct {
	DefaultExpirationDays int
	ExpiringThresholdDays int
	MaxRetries            int
	MaxChargeAmount       int64
	SweepInterval         time.Duration
	SweepBatchSize        int
}

type AppConfig struct {
	Env         string
	Port        string
	CORSOrigins string
	StoreDriver string
	JWTSecret   string
	JWTIssuer   string

	DB     DBConfig
	Redis  RedisConfig
	Stripe StripeConfig
	Kafka  KafkaConfig
	Points PointsConfig
}

// Load reads the full application configuration from the environment.
func Load() AppConfig {
	return AppConfig{
		Env:         GetEnv("ENV", "development"),
		Port:        GetEnv("PORT", "3000"),
		CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		StoreDriver: GetEnv("STORE_DRIVER", StoreDriverPostgres),
		JWTSecret:   GetEnv("JWT_SECRET", ""),
		JWTIssuer:   GetEnv("JWT_ISSUER", ""),
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "coordy"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", ""),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
			TTL:      GetDurationEnv("WALLET_CACHE_TTL", 5*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey: GetEnv("STRIPE_SECRET_KEY", ""),
			Currency:  GetEnv("STRIPE_CURRENCY", "jpy"),
		},
		Kafka: KafkaConfig{
			Brokers:     GetListEnv("KAFKA_BROKERS"),
			LedgerTopic: GetEnv("KAFKA_LEDGER_TOPIC", "coordy.points.ledger"),
		},
		Points: PointsConfig{
			DefaultExpirationDays: GetIntEnv("POINTS_DEFAULT_EXPIRATION_DAYS", 365),
			ExpiringThresholdDays: GetIntEnv("POINTS_EXPIRING_THRESHOLD_DAYS", 30),
			MaxRetries:            GetIntEnv("POINTS_MAX_RETRIES", 3),
			MaxChargeAmount:       GetInt64Env("POINTS_MAX_CHARGE", 1_000_000),
			SweepInterval:         GetDurationEnv("EXPIRATION_SWEEP_INTERVAL", time.Hour),
			SweepBatchSize:        GetIntEnv("EXPIRATION_SWEEP_BATCH", 100),
		},
	}
}

// IsProduction checks the loaded environment name.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects configurations that must not reach production.
func (c AppConfig) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.IsProduction() {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY must be set in production")
		}
		if c.StoreDriver == StoreDriverMemory {
			return fmt.Errorf("memory store is not allowed in production")
		}
	}
	return nil
}
