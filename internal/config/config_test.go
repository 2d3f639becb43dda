package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("JWT_TTL", "")

	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, int64(1500), cfg.DeliveryFee)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("DELIVERY_FEE", "2000")
	t.Setenv("NOTIFIER_WORKERS", "not-a-number")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
	assert.Equal(t, int64(2000), cfg.DeliveryFee)
	assert.Equal(t, 4, cfg.NotifierWorkers)
	assert.False(t, cfg.AutoMigrate)
}
