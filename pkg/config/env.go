package config

const EnvPrefix = "BACKOFFICE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EventingDriverPubSub = "pubsub"
	EventingDriverKafka  = "kafka"
	EventingDriverMemory = "memory"

	InventoryModeInline = "inline"
	InventoryModeAsync  = "async"
)

const (
	EnvAppEnv         = "BACKOFFICE_APP_ENV"
	EnvPort           = "BACKOFFICE_APP_PORT"
	EnvDBDSN          = "BACKOFFICE_DB_DSN"
	EnvDBDriver       = "BACKOFFICE_DB_DRIVER"
	EnvDBHost         = "BACKOFFICE_DB_HOST"
	EnvDBUser         = "BACKOFFICE_DB_USER"
	EnvDBName         = "BACKOFFICE_DB_NAME"
	EnvRedisURL       = "BACKOFFICE_REDIS_URL"
	EnvEventingDriver = "BACKOFFICE_EVENTING_DRIVER"
	EnvOrdersTopic    = "BACKOFFICE_EVENTING_ORDERS_TOPIC"
	EnvProductsTopic  = "BACKOFFICE_EVENTING_PRODUCTS_TOPIC"
	EnvAnalyticsTopic = "BACKOFFICE_EVENTING_ANALYTICS_TOPIC"
	EnvAlertsTopic    = "BACKOFFICE_EVENTING_ALERTS_TOPIC"
	EnvGCPProjectID   = "BACKOFFICE_GCP_PROJECT_ID"
	EnvInventoryMode  = "BACKOFFICE_INVENTORY_MODE"
	EnvProductSvcURL  = "BACKOFFICE_PRODUCT_SERVICE_URL"
	EnvKafkaBrokers   = "BACKOFFICE_KAFKA_BROKERS"
)

var dbPartsEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
