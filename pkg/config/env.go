package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "PARTSBAY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PARTSBAY_APP_ENV"
	EnvPort     = "PARTSBAY_APP_PORT"
	EnvLogLevel = "PARTSBAY_LOG_LEVEL"

	EnvDBDSN      = "PARTSBAY_DB_DSN"
	EnvDBHost     = "PARTSBAY_DB_HOST"
	EnvDBPort     = "PARTSBAY_DB_PORT"
	EnvDBUser     = "PARTSBAY_DB_USER"
	EnvDBPassword = "PARTSBAY_DB_PASSWORD"
	EnvDBName     = "PARTSBAY_DB_NAME"

	EnvRedisURL = "PARTSBAY_REDIS_URL"

	EnvJWTSecret              = "PARTSBAY_JWT_SECRET"
	EnvJWTIssuer              = "PARTSBAY_JWT_ISSUER"
	EnvJWTExpMins             = "PARTSBAY_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "PARTSBAY_REFRESH_TOKEN_TTL_MINUTES"

	EnvGatewayWebhookSecret = "PARTSBAY_GATEWAY_WEBHOOK_SECRET"

	EnvGCPProjectID = "PARTSBAY_GCP_PROJECT_ID"

	EnvPubSubSettlementsTopic = "PARTSBAY_PUBSUB_SETTLEMENTS_TOPIC"
	EnvPubSubSettlementsSub   = "PARTSBAY_PUBSUB_SETTLEMENTS_SUBSCRIPTION"
	EnvPubSubInventoryTopic   = "PARTSBAY_PUBSUB_INVENTORY_TOPIC"
	EnvPubSubInventorySub     = "PARTSBAY_PUBSUB_INVENTORY_SUBSCRIPTION"
)

// legacyDBEnvVars are the discrete connection fields accepted when
// PARTSBAY_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
