// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendPebble   = "pebble"
)

// Config holds every runtime setting of the service.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	TLSCert         string        `envconfig:"TLS_CERT"`
	TLSKey          string        `envconfig:"TLS_KEY"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	LogLevel        string  `envconfig:"LOG_LEVEL" default:"info"`
	ServiceName     string  `envconfig:"SERVICE_NAME" default:"ordermgmt"`
	OtelHost        string  `envconfig:"OTEL_HOST"`
	OtelProbability float64 `envconfig:"OTEL_PROBABILITY" default:"1.0"`

	Storage

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"orders"`

	// ClearOrderOnEmptyProducts makes an explicit empty product_ids list in an
	// order update clear the order. When false the empty list is ignored.
	ClearOrderOnEmptyProducts bool `envconfig:"CLEAR_ORDER_ON_EMPTY_PRODUCTS" default:"false"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	Backend      string `envconfig:"STORAGE_BACKEND" default:"file"`
	DataDir      string `envconfig:"DATA_DIR" default:"."`
	ProductsFile string `envconfig:"PRODUCTS_FILE" default:"products.json"`
	OrdersFile   string `envconfig:"ORDERS_FILE" default:"orders.json"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"ordermgmt:"`

	PebbleDir string `envconfig:"PEBBLE_DIR" default:"data/pebble"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.ProductsFile == "" || c.Storage.OrdersFile == "" {
			return errors.New("PRODUCTS_FILE and ORDERS_FILE must not be empty")
		}
		if c.Storage.ProductsFile == c.Storage.OrdersFile {
			return errors.New("PRODUCTS_FILE and ORDERS_FILE must differ")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	case BackendPebble:
		if c.Storage.PebbleDir == "" {
			return errors.New("PEBBLE_DIR is required for the pebble backend")
		}
	default:
		return errors.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.OtelProbability < 0 || c.OtelProbability > 1 {
		return errors.Errorf("OTEL_PROBABILITY must be within [0,1], got %v", c.OtelProbability)
	}
	return nil
}
