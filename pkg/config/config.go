package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Tracing      TracingConfig
	Inventory    InventoryConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// minProdSecretLen is the shortest HS256 secret accepted in production.
const minProdSecretLen = 32

// validate reports every problem at once so a bad deploy fails with the full
// list instead of one variable per restart.
func (c *Config) validate() error {
	var errs error
	if !c.FeatureFlags.UseSQLite {
		errs = multierr.Append(errs, c.DB.ensureDSN())
	}
	errs = multierr.Append(errs, c.Eventing.validate())
	if _, err := c.Inventory.SharedPart(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.App.IsProd() && len(c.JWT.Secret) < minProdSecretLen {
		errs = multierr.Append(errs, fmt.Errorf("%s must be at least %d bytes in production", EnvJWTSecret, minProdSecretLen))
	}
	if c.Outbox.MaxAttempts < 1 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvOutboxMaxAttempts))
	}
	return errs
}

type AppConfig struct {
	Env          string   `envconfig:"KITSTOCK_APP_ENV" required:"true"`
	Port         string   `envconfig:"KITSTOCK_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"KITSTOCK_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"KITSTOCK_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"KITSTOCK_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"KITSTOCK_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// IsProd accepts both "prod" and "production".
func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"KITSTOCK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KITSTOCK_DB_DSN"`
	Driver string `envconfig:"KITSTOCK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KITSTOCK_DB_HOST"`
	LegacyPort     int    `envconfig:"KITSTOCK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KITSTOCK_DB_USER"`
	LegacyPassword string `envconfig:"KITSTOCK_DB_PASSWORD"`
	LegacyName     string `envconfig:"KITSTOCK_DB_NAME"`
	LegacySSLMode  string `envconfig:"KITSTOCK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KITSTOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KITSTOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KITSTOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KITSTOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the statement duration logged as db.query_slow.
	SlowQuery time.Duration `envconfig:"KITSTOCK_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KITSTOCK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KITSTOCK_REDIS_ADDR"`
	Password     string        `envconfig:"KITSTOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"KITSTOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KITSTOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KITSTOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KITSTOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KITSTOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KITSTOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the account service.
type JWTConfig struct {
	Secret string `envconfig:"KITSTOCK_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"KITSTOCK_JWT_ISSUER" required:"true"`
	// ExpirationMinutes only applies to tokens minted locally for tooling and tests.
	ExpirationMinutes int `envconfig:"KITSTOCK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KITSTOCK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KITSTOCK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	Broker string `envconfig:"KITSTOCK_EVENTING_BROKER" default:"pubsub"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Broker)) {
	case BrokerPubSub, BrokerKafka:
		return nil
	default:
		return fmt.Errorf("%s must be one of %q or %q", EnvEventingBroker, BrokerPubSub, BrokerKafka)
	}
}

// UsesKafka reports whether domain events go to Kafka instead of Pub/Sub.
func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Broker), BrokerKafka)
}

type GCPConfig struct {
	ProjectID string `envconfig:"KITSTOCK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic    string `envconfig:"KITSTOCK_PUBSUB_ORDERS_TOPIC" default:"kitstock-order-events"`
	InventoryTopic string `envconfig:"KITSTOCK_PUBSUB_INVENTORY_TOPIC" default:"kitstock-inventory-events"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"KITSTOCK_KAFKA_BROKERS" default:"localhost:9092"`
	ClientID     string        `envconfig:"KITSTOCK_KAFKA_CLIENT_ID" default:"kitstock"`
	BatchTimeout time.Duration `envconfig:"KITSTOCK_KAFKA_BATCH_TIMEOUT" default:"10ms"`
	WriteTimeout time.Duration `envconfig:"KITSTOCK_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"KITSTOCK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"KITSTOCK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"KITSTOCK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"KITSTOCK_OUTBOX_RETENTION" default:"720h"`
	// DeadLetterRetention is kept longer than Retention so parked rows can be
	// inspected and replayed by hand.
	DeadLetterRetention time.Duration `envconfig:"KITSTOCK_OUTBOX_DLQ_RETENTION" default:"2160h"`
	MetricsAddr         string        `envconfig:"KITSTOCK_OUTBOX_METRICS_ADDR" default:":9092"`
}

type TracingConfig struct {
	Enabled      bool    `envconfig:"KITSTOCK_TRACING_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"KITSTOCK_OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	Insecure     bool    `envconfig:"KITSTOCK_OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	SampleRatio  float64 `envconfig:"KITSTOCK_TRACING_SAMPLE_RATIO" default:"1"`
}

// InventoryConfig names the part that every provider offering draws from.
type InventoryConfig struct {
	SharedPartID string `envconfig:"KITSTOCK_INVENTORY_SHARED_PART_ID"`
}

// SharedPart parses SharedPartID. The zero UUID means shared-resource tracking is disabled.
func (i InventoryConfig) SharedPart() (uuid.UUID, error) {
	raw := strings.TrimSpace(i.SharedPartID)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", EnvInventorySharedPartID, err)
	}
	return id, nil
}

type CronConfig struct {
	LockTTL time.Duration `envconfig:"KITSTOCK_CRON_LOCK_TTL" default:"50s"`
	// RetentionEvery spaces outbox retention runs; the reservation sweep
	// always runs every minute.
	RetentionEvery time.Duration `envconfig:"KITSTOCK_CRON_RETENTION_EVERY" default:"1h"`
	MetricsAddr    string        `envconfig:"KITSTOCK_CRON_METRICS_ADDR" default:":9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

// RateLimitConfig throttles reserve and checkout attempts in fixed windows,
// per actor and per client address. A zero limit turns that counter off.
type RateLimitConfig struct {
	Window             time.Duration `envconfig:"KITSTOCK_RATE_LIMIT_WINDOW" default:"1m"`
	ReserveActorLimit  int           `envconfig:"KITSTOCK_RATE_LIMIT_RESERVE_ACTOR" default:"30"`
	ReserveIPLimit     int           `envconfig:"KITSTOCK_RATE_LIMIT_RESERVE_IP" default:"120"`
	CheckoutActorLimit int           `envconfig:"KITSTOCK_RATE_LIMIT_CHECKOUT_ACTOR" default:"10"`
	CheckoutIPLimit    int           `envconfig:"KITSTOCK_RATE_LIMIT_CHECKOUT_IP" default:"60"`
}
