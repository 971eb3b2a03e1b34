package config

const (
	EnvPrefix = "VENDA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv             = "VENDA_APP_ENV"
	EnvPort               = "VENDA_APP_PORT"
	EnvDBDSN              = "VENDA_DB_DSN"
	EnvDBDriver           = "VENDA_DB_DRIVER"
	EnvDBHost             = "VENDA_DB_HOST"
	EnvDBUser             = "VENDA_DB_USER"
	EnvDBName             = "VENDA_DB_NAME"
	EnvRedisURL           = "VENDA_REDIS_URL"
	EnvJWTSecret          = "VENDA_JWT_SECRET"
	EnvGatewayAccessToken = "VENDA_GATEWAY_ACCESS_TOKEN"
	EnvWebhookSecret      = "VENDA_WEBHOOK_SECRET"
	EnvWebhookPublicURL   = "VENDA_WEBHOOK_PUBLIC_URL"
	EnvFrontendURL        = "VENDA_FRONTEND_URL"
	EnvReconcileMinAge    = "VENDA_RECONCILE_MIN_AGE"
	EnvBigQueryDataset    = "VENDA_BIGQUERY_DATASET"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
