package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	Gateway       GatewayConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	Payouts       PayoutsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PARTSBAY_APP_ENV" required:"true"`
	Port         string `envconfig:"PARTSBAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PARTSBAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PARTSBAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PARTSBAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PARTSBAY_DB_DSN"`
	Driver string `envconfig:"PARTSBAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARTSBAY_DB_HOST"`
	LegacyPort     int    `envconfig:"PARTSBAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARTSBAY_DB_USER"`
	LegacyPassword string `envconfig:"PARTSBAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARTSBAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARTSBAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARTSBAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARTSBAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARTSBAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARTSBAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARTSBAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PARTSBAY_REDIS_ADDR"`
	Password     string        `envconfig:"PARTSBAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARTSBAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARTSBAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARTSBAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARTSBAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARTSBAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARTSBAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PARTSBAY_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PARTSBAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PARTSBAY_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PARTSBAY_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PARTSBAY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PARTSBAY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PARTSBAY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PARTSBAY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PARTSBAY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"PARTSBAY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"PARTSBAY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"PARTSBAY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	WebhookWindow   time.Duration `envconfig:"PARTSBAY_WEBHOOK_RATE_LIMIT_WINDOW" default:"1m"`
	WebhookIPLimit  int           `envconfig:"PARTSBAY_WEBHOOK_RATE_LIMIT_IP_LIMIT" default:"120"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PARTSBAY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PARTSBAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PARTSBAY_AUTO_MIGRATE" default:"false"`
}

// GatewayConfig describes the payment gateway boundary. The gateway is an
// opaque external actor: the only protocol details we carry are the shared
// secret its webhook deliveries are signed with and how long delivery
// markers are retained for replay suppression.
type GatewayConfig struct {
	WebhookSecret         string        `envconfig:"PARTSBAY_GATEWAY_WEBHOOK_SECRET" required:"true"`
	WebhookIdempotencyTTL time.Duration `envconfig:"PARTSBAY_GATEWAY_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PARTSBAY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PARTSBAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PARTSBAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementsTopic        string `envconfig:"PARTSBAY_PUBSUB_SETTLEMENTS_TOPIC" required:"true"`
	SettlementsSubscription string `envconfig:"PARTSBAY_PUBSUB_SETTLEMENTS_SUBSCRIPTION" required:"true"`
	InventoryTopic          string `envconfig:"PARTSBAY_PUBSUB_INVENTORY_TOPIC" required:"true"`
	InventorySubscription   string `envconfig:"PARTSBAY_PUBSUB_INVENTORY_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PARTSBAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PARTSBAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PARTSBAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"PARTSBAY_CRON_INTERVAL" default:"1h"`
	StalePaymentAge time.Duration `envconfig:"PARTSBAY_CRON_STALE_PAYMENT_AGE" default:"72h"`
	LowStockDedup   time.Duration `envconfig:"PARTSBAY_CRON_LOW_STOCK_DEDUP" default:"24h"`
}

type PayoutsConfig struct {
	// PeriodDays is the length of the automatically aggregated payout
	// period; the cron job closes the most recent fully elapsed period.
	PeriodDays int `envconfig:"PARTSBAY_PAYOUT_PERIOD_DAYS" default:"7"`
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
