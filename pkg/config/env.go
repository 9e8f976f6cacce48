package config

const (
	EnvPrefix = "KITSTOCK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	BrokerPubSub = "pubsub"
	BrokerKafka  = "kafka"
)

const (
	EnvAppEnv                = "KITSTOCK_APP_ENV"
	EnvPort                  = "KITSTOCK_APP_PORT"
	EnvDBDSN                 = "KITSTOCK_DB_DSN"
	EnvDBHost                = "KITSTOCK_DB_HOST"
	EnvDBUser                = "KITSTOCK_DB_USER"
	EnvDBName                = "KITSTOCK_DB_NAME"
	EnvDBPassword            = "KITSTOCK_DB_PASSWORD"
	EnvRedisURL              = "KITSTOCK_REDIS_URL"
	EnvJWTSecret             = "KITSTOCK_JWT_SECRET"
	EnvJWTIssuer             = "KITSTOCK_JWT_ISSUER"
	EnvEventingBroker        = "KITSTOCK_EVENTING_BROKER"
	EnvKafkaBrokers          = "KITSTOCK_KAFKA_BROKERS"
	EnvInventorySharedPartID = "KITSTOCK_INVENTORY_SHARED_PART_ID"
	EnvOutboxMaxAttempts     = "KITSTOCK_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
