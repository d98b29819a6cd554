package config

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SourceID  string `envconfig:"BID_SOURCE" default:"./data/bids.json" validate:"required"`
	UseCache  bool   `envconfig:"USE_CACHE" default:"true"`
	PriceUnit string `envconfig:"PRICE_UNIT" default:"元/kWh"`
	LatestN   int    `envconfig:"LATEST_COUNT" default:"10" validate:"gte=1"`

	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s" validate:"gt=0"`
	FetchMaxAttempts int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"1" validate:"gte=1,lte=10"`
	ChromeBin        string        `envconfig:"CHROME_BIN"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"true"`

	PersistSnapshots bool   `envconfig:"PERSIST_SNAPSHOTS" default:"false"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"bids"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"bids123"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"bids_db"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"bids:events"`

	ServeAddr    string `envconfig:"SERVE_ADDR" default:":8080" validate:"required"`
	ExportPath   string `envconfig:"EXPORT_PATH" default:"./output/bids.csv"`
	ExportFormat string `envconfig:"EXPORT_FORMAT" default:"csv" validate:"oneof=csv json xlsx"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
}

// Load reads the .env file, applies environment variables over the
// defaults and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// S3Enabled reports whether object storage sources can be served.
func (c *Config) S3Enabled() bool {
	return c.S3Endpoint != ""
}
