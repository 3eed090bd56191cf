package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("OIDC_ISSUER", "")

	cfg := Load()

	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 25*time.Millisecond, cfg.Lock.RetryInterval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "checkin.events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Viewer.PollInterval)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.Auth.OIDCIssuer)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("LOCK_TTL_SECONDS", "3")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("HUB_SESSION_BUFFER", "not-a-number")
	t.Setenv("VIEWER_POLL_SECONDS", "-1")
	t.Setenv("OIDC_ISSUER", "https://auth.example.com/realms/venue")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, 3*time.Second, cfg.Lock.TTL)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 32, cfg.Hub.SessionBuffer)
	assert.Equal(t, 5*time.Second, cfg.Viewer.PollInterval)
	assert.Equal(t, "https://auth.example.com/realms/venue", cfg.Auth.OIDCIssuer)
}
