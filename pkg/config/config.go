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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Labels       LabelsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.App.IsProd() && cfg.FeatureFlags.AutoMigrate {
		return nil, fmt.Errorf("%s must not be enabled in %s", EnvAutoMigrate, AppEnvProd)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Labels.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LABELTRACK_APP_ENV" required:"true"`
	Port         string `envconfig:"LABELTRACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LABELTRACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LABELTRACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LABELTRACK_DB_DSN"`
	Driver string `envconfig:"LABELTRACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LABELTRACK_DB_HOST"`
	LegacyPort     int    `envconfig:"LABELTRACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LABELTRACK_DB_USER"`
	LegacyPassword string `envconfig:"LABELTRACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"LABELTRACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"LABELTRACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LABELTRACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LABELTRACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LABELTRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LABELTRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the SQLite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"LABELTRACK_REDIS_URL"`
	Address      string        `envconfig:"LABELTRACK_REDIS_ADDR"`
	Password     string        `envconfig:"LABELTRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"LABELTRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LABELTRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LABELTRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LABELTRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LABELTRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LABELTRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret string `envconfig:"LABELTRACK_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"LABELTRACK_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LABELTRACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LABELTRACK_AUTO_MIGRATE" default:"false"`
}

// LabelsConfig tunes the label lifecycle engine.
type LabelsConfig struct {
	CodePrefix        string   `envconfig:"LABELTRACK_LABEL_CODE_PREFIX" default:"BTL"`
	CodeLength        int      `envconfig:"LABELTRACK_LABEL_CODE_LENGTH" default:"8"`
	MaxCodeAttempts   int      `envconfig:"LABELTRACK_LABEL_MAX_CODE_ATTEMPTS" default:"100"`
	DuplicateRetries  int      `envconfig:"LABELTRACK_LABEL_DUPLICATE_RETRIES" default:"3"`
	MinBatchQuantity  int      `envconfig:"LABELTRACK_LABEL_MIN_BATCH_QUANTITY" default:"1"`
	MaxBatchQuantity  int      `envconfig:"LABELTRACK_LABEL_MAX_BATCH_QUANTITY" default:"500"`
	LocationAllowlist []string `envconfig:"LABELTRACK_LABEL_LOCATION_ALLOWLIST"`
	RetiredScanNotice string   `envconfig:"LABELTRACK_LABEL_RETIRED_SCAN_NOTICE" default:"This label has been retired"`
}

func (l LabelsConfig) validate() error {
	if l.CodeLength < 4 {
		return fmt.Errorf("%s must be at least 4", EnvLabelCodeLength)
	}
	if l.MaxCodeAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvLabelMaxCodeAttempts)
	}
	if l.MinBatchQuantity <= 0 || l.MaxBatchQuantity < l.MinBatchQuantity {
		return fmt.Errorf("invalid batch quantity bounds %d..%d", l.MinBatchQuantity, l.MaxBatchQuantity)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
