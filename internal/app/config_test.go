package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTest(t *testing.T, files ...string) (*Config, error) {
	t.Helper()
	if files == nil {
		files = []string{}
	}
	return load(aconfig.Config{SkipFlags: true, Files: files})
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ORDERDESK_STORAGE", "memory")

	cfg, err := loadTest(t)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "orderdesk.orders", cfg.Kafka.Topic)
	assert.Equal(t, time.Second, cfg.Kafka.RelayInterval)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/orders")
	t.Setenv("PORT", "9000")

	cfg, err := loadTest(t)
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "postgres://u:p@db:5432/orders", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("ORDERDESK_DATABASE_URL", "postgres://x")
	t.Setenv("ORDERDESK_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ORDERDESK_IDEMPOTENCY_TTL", "5m")

	cfg, err := loadTest(t)
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.Idempotency.TTL)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage: memory
admin:
  email: root@example.com
  password: secret99
`), 0o600))

	cfg, err := loadTest(t, path)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "root@example.com", cfg.Admin.Email)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := loadTest(t)
		assert.ErrorContains(t, err, "database URL")
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("ORDERDESK_STORAGE", "sqlite")
		_, err := loadTest(t)
		assert.ErrorContains(t, err, "sqlite")
	})
	t.Run("admin without password", func(t *testing.T) {
		t.Setenv("ORDERDESK_STORAGE", "memory")
		t.Setenv("ORDERDESK_ADMIN_EMAIL", "root@example.com")
		_, err := loadTest(t)
		assert.ErrorContains(t, err, "admin password")
	})
}

func TestConfig_ValidateTrustedProxies(t *testing.T) {
	cfg := &Config{Storage: StorageMemory}
	cfg.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1"}
	require.NoError(t, cfg.validate())

	cfg.RateLimit.TrustedProxies = []string{"proxy.internal"}
	assert.ErrorContains(t, cfg.validate(), "trusted proxy")
}
