package config

// EnvPrefix is applied by envconfig when resolving configuration values.
const EnvPrefix = "FITCHECK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
	AppEnvTest = "test"
)

const (
	EnvDBDSN  = "FITCHECK_DB_DSN"
	EnvDBHost = "FITCHECK_DB_HOST"
	EnvDBUser = "FITCHECK_DB_USER"
	EnvDBName = "FITCHECK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
