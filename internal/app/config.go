package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/orderdesk/pkg/httpmiddleware"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the application configuration, loadable from environment
// variables (ORDERDESK_ prefix, optionally from a .env file), flags, or YAML
// config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage     string `default:"postgres" usage:"Storage driver: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDERDESK_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	// ProductsFile seeds the memory driver. Empty means the built-in catalog.
	ProductsFile string `usage:"Catalog JSON (or .json.gz) for the memory driver" flag:"products-file"`
	BcryptCost   int    `default:"10" usage:"bcrypt cost for new password hashes" flag:"bcrypt-cost"`
	Admin        AdminConfig
	Kafka        KafkaConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// AdminConfig bootstraps an admin account at startup when Email is set.
type AdminConfig struct {
	Email    string `usage:"Admin account created at startup if missing"`
	Password string `usage:"Password for the bootstrap admin"`
}

// KafkaConfig controls the order event relay. With no brokers events are
// logged instead of published.
type KafkaConfig struct {
	Brokers       string        `usage:"Comma separated Kafka brokers"`
	Topic         string        `default:"orderdesk.orders" usage:"Topic for order events"`
	RelayInterval time.Duration `default:"1s" usage:"Outbox polling interval" flag:"relay-interval"`
	BatchSize     int           `default:"100" usage:"Events published per batch" flag:"relay-batch"`
}

// IdempotencyConfig sizes the Idempotency-Key cache.
type IdempotencyConfig struct {
	Size int           `default:"10000" usage:"Remembered idempotency keys"`
	TTL  time.Duration `default:"24h" usage:"How long an idempotency key is remembered"`
}

// RateLimitConfig limits requests per client IP. Max of zero disables it.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// Forwarding headers are only believed from these peers.
	TrustedProxies []string `usage:"Proxy addresses or CIDRs whose X-Forwarded-For is trusted"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads .env if present, then environment variables, YAML files
// and flags.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return load(aconfig.Config{})
}

func load(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "ORDERDESK"
	if base.Files == nil {
		base.Files = []string{"config.yaml", "/etc/orderdesk/config.yaml"}
	}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set ORDERDESK_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage)
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("admin password is required when admin email is set")
	}
	if _, err := httpmiddleware.ParseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		return errors.Wrap(err, "rate limit")
	}
	return nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL and PORT
// variables onto the prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
