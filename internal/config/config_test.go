package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvDefaults(t *testing.T) {
	t.Setenv("COORDY_TEST_STR", "")
	t.Setenv("COORDY_TEST_INT", "not-a-number")
	t.Setenv("COORDY_TEST_DUR", "90s")

	assert.Equal(t, "fallback", GetEnv("COORDY_TEST_STR", "fallback"))
	assert.Equal(t, 7, GetIntEnv("COORDY_TEST_INT", 7))
	assert.Equal(t, 90*time.Second, GetDurationEnv("COORDY_TEST_DUR", time.Minute))
	assert.True(t, GetBoolEnv("COORDY_TEST_MISSING_BOOL", true))
}

func TestGetListEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	assert.Equal(t, []string{"a:9092", "b:9092"}, GetListEnv("KAFKA_BROKERS"))

	t.Setenv("KAFKA_BROKERS", "")
	assert.Nil(t, GetListEnv("KAFKA_BROKERS"))
}

func TestLoadPointsDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 365, cfg.Points.DefaultExpirationDays)
	assert.Equal(t, 30, cfg.Points.ExpiringThresholdDays)
	assert.Equal(t, 3, cfg.Points.MaxRetries)
}

func TestValidate(t *testing.T) {
	cfg := AppConfig{StoreDriver: StoreDriverMemory}
	assert.Error(t, cfg.Validate(), "missing secret")

	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Env = "production"
	assert.Error(t, cfg.Validate(), "memory store and missing stripe key")

	cfg.StoreDriver = StoreDriverPostgres
	cfg.Stripe.SecretKey = "sk_live_x"
	assert.NoError(t, cfg.Validate())

	cfg.StoreDriver = "mongo"
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "coordy", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=coordy port=5432 sslmode=disable", c.DSN())
}
