package config

// EnvPrefix is applied by envconfig to untagged fields; every field in this
// package carries an explicit tag, so it mostly documents the namespace.
const EnvPrefix = "IMEI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags (tests, error text).
const (
	EnvAppEnv   = "IMEI_APP_ENV"
	EnvPort     = "IMEI_APP_PORT"
	EnvDBDSN    = "IMEI_DB_DSN"
	EnvDBHost   = "IMEI_DB_HOST"
	EnvDBUser   = "IMEI_DB_USER"
	EnvDBName   = "IMEI_DB_NAME"
	EnvRedisURL = "IMEI_REDIS_URL"

	EnvGCPProjectID    = "IMEI_GCP_PROJECT_ID"
	EnvPubSubTopic     = "IMEI_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubSub       = "IMEI_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvBigQueryDataset = "IMEI_BIGQUERY_DATASET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
