package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_MIGRATE", "DB_SEED", "PRODUCT_CACHE_TTL_SECONDS", "MAX_PAGE_SIZE", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Database.Migrate)
	assert.False(t, cfg.Database.Seed)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ProductCacheTTL)
	assert.Equal(t, 15, cfg.Pagination.DefaultPageSize)
	assert.Equal(t, 100, cfg.Pagination.MaxPageSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_MIGRATE", "false")
	t.Setenv("DB_SEED", "true")
	t.Setenv("PRODUCT_CACHE_TTL_SECONDS", "30")
	t.Setenv("MAX_PAGE_SIZE", "50")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.False(t, cfg.Database.Migrate)
	assert.True(t, cfg.Database.Seed)
	assert.Equal(t, 30*time.Second, cfg.Redis.ProductCacheTTL)
	assert.Equal(t, 50, cfg.Pagination.MaxPageSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "three")
	t.Setenv("DB_MIGRATE", "maybe")

	cfg := Load()

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.True(t, cfg.Database.Migrate)
}
