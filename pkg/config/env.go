package config

// EnvPrefix is handed to envconfig; every field also carries its full name.
const EnvPrefix = "LABELTRACK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:labeltrack.db?_foreign_keys=on"
)

const (
	EnvAppEnv   = "LABELTRACK_APP_ENV"
	EnvPort     = "LABELTRACK_APP_PORT"
	EnvLogLevel = "LABELTRACK_LOG_LEVEL"

	EnvDBDSN    = "LABELTRACK_DB_DSN"
	EnvDBDriver = "LABELTRACK_DB_DRIVER"
	EnvDBHost   = "LABELTRACK_DB_HOST"
	EnvDBUser   = "LABELTRACK_DB_USER"
	EnvDBName   = "LABELTRACK_DB_NAME"

	EnvRedisURL = "LABELTRACK_REDIS_URL"

	EnvJWTSecret = "LABELTRACK_JWT_SECRET"
	EnvJWTIssuer = "LABELTRACK_JWT_ISSUER"

	EnvUseSQLite   = "LABELTRACK_USE_SQLITE"
	EnvAutoMigrate = "LABELTRACK_AUTO_MIGRATE"

	EnvLabelCodePrefix        = "LABELTRACK_LABEL_CODE_PREFIX"
	EnvLabelCodeLength        = "LABELTRACK_LABEL_CODE_LENGTH"
	EnvLabelMaxCodeAttempts   = "LABELTRACK_LABEL_MAX_CODE_ATTEMPTS"
	EnvLabelMaxBatchQuantity  = "LABELTRACK_LABEL_MAX_BATCH_QUANTITY"
	EnvLabelLocationAllowlist = "LABELTRACK_LABEL_LOCATION_ALLOWLIST"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
