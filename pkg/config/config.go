package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Cache        CacheConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Eventing     EventingConfig
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
	Env          string   `envconfig:"IMEI_APP_ENV" required:"true"`
	Port         string   `envconfig:"IMEI_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"IMEI_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"IMEI_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"IMEI_API_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"IMEI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"IMEI_DB_DSN"`
	Driver string `envconfig:"IMEI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"IMEI_DB_HOST"`
	LegacyPort     int    `envconfig:"IMEI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"IMEI_DB_USER"`
	LegacyPassword string `envconfig:"IMEI_DB_PASSWORD"`
	LegacyName     string `envconfig:"IMEI_DB_NAME"`
	LegacySSLMode  string `envconfig:"IMEI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"IMEI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"IMEI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"IMEI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"IMEI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"IMEI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"IMEI_REDIS_ADDR"`
	Password     string        `envconfig:"IMEI_REDIS_PASSWORD"`
	DB           int           `envconfig:"IMEI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"IMEI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"IMEI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"IMEI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"IMEI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"IMEI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CacheConfig governs the hierarchy view cache. A zero TTL disables caching.
type CacheConfig struct {
	HierarchyTTL time.Duration `envconfig:"IMEI_CACHE_HIERARCHY_TTL" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"IMEI_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"IMEI_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"IMEI_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"IMEI_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"IMEI_PUBSUB_DOMAIN_TOPIC" default:"imei-catalog-events"`
	DomainSubscription string `envconfig:"IMEI_PUBSUB_DOMAIN_SUBSCRIPTION" default:"imei-catalog-events-analytics"`
}

type BigQueryConfig struct {
	Dataset        string `envconfig:"IMEI_BIGQUERY_DATASET" default:"imei"`
	SightingsTable string `envconfig:"IMEI_BIGQUERY_SIGHTINGS_TABLE" default:"device_sightings"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"IMEI_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"IMEI_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"IMEI_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"IMEI_OUTBOX_RETENTION_DAYS" default:"30"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"IMEI_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
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
