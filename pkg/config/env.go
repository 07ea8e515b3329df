package config

const (
	EnvPrefix = "SCHOOLPAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "SCHOOLPAY_APP_ENV"
	EnvJWTSecret = "SCHOOLPAY_JWT_SECRET"

	EnvDBDSN  = "SCHOOLPAY_DB_DSN"
	EnvDBHost = "SCHOOLPAY_DB_HOST"
	EnvDBUser = "SCHOOLPAY_DB_USER"
	EnvDBName = "SCHOOLPAY_DB_NAME"

	EnvGatewayAPIKey = "SCHOOLPAY_GATEWAY_API_KEY"
	EnvGatewayPGKey  = "SCHOOLPAY_GATEWAY_PG_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
