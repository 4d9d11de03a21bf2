package config

const (
	EnvPrefix = "PAYFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "PAYFLOW_APP_ENV"
	EnvPort      = "PAYFLOW_APP_PORT"
	EnvLogLevel  = "PAYFLOW_LOG_LEVEL"
	EnvLogFormat = "PAYFLOW_LOG_FORMAT"

	EnvDBDSN  = "PAYFLOW_DB_DSN"
	EnvDBHost = "PAYFLOW_DB_HOST"
	EnvDBUser = "PAYFLOW_DB_USER"
	EnvDBName = "PAYFLOW_DB_NAME"

	EnvRedisURL = "PAYFLOW_REDIS_URL"

	EnvJWTSecret = "PAYFLOW_JWT_SECRET"
	EnvJWTIssuer = "PAYFLOW_JWT_ISSUER"

	EnvMpesaBaseURL        = "PAYFLOW_MPESA_BASE_URL"
	EnvMpesaConsumerKey    = "PAYFLOW_MPESA_CONSUMER_KEY"
	EnvMpesaConsumerSecret = "PAYFLOW_MPESA_CONSUMER_SECRET"
	EnvMpesaShortCode      = "PAYFLOW_MPESA_SHORTCODE"
	EnvMpesaPasskey        = "PAYFLOW_MPESA_PASSKEY"
	EnvMpesaCallbackURL    = "PAYFLOW_MPESA_CALLBACK_BASE_URL"

	EnvAutoDisbursement = "PAYFLOW_FEATURE_AUTO_DISBURSEMENT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
