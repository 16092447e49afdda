// Package config loads process settings. Sources, lowest precedence first:
// built-in defaults, an optional YAML file named by CONFIG_FILE, and the
// environment (a .env file in the working directory is loaded into it).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort string `yaml:"http_port"`
	GRPCPort string `yaml:"grpc_port"`

	DB        Database `yaml:"database"`
	RedisAddr string   `yaml:"redis_addr"`
	AMQPURL   string   `yaml:"amqp_url"`

	JWTSecret string `yaml:"jwt_secret"`

	Payment   Payment   `yaml:"payment"`
	MockPG    MockPG    `yaml:"mockpg"`
	Reconcile Reconcile `yaml:"reconcile"`

	OTelServiceName string `yaml:"otel_service_name"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	LogLevel        string `yaml:"log_level"`
	SeedDemoData    bool   `yaml:"seed_demo_data"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// JournalPath is the SQLite file of the settlement journal.
	JournalPath string `yaml:"journal_path"`
}

type Payment struct {
	GatewayTimeout time.Duration `yaml:"gateway_timeout"`
	AllowRetry     bool          `yaml:"allow_retry"`
}

type MockPG struct {
	MinLatency    time.Duration `yaml:"min_latency"`
	MaxLatency    time.Duration `yaml:"max_latency"`
	DeclinePrefix string        `yaml:"decline_prefix"`
}

type Reconcile struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
}

func defaults() *Config {
	return &Config{
		HTTPPort: "8080",
		GRPCPort: "9090",
		DB: Database{
			Driver:      "sqlite",
			DSN:         "ordering.db",
			JournalPath: "settlement.db",
		},
		JWTSecret: "changeme",
		Payment: Payment{
			GatewayTimeout: 5 * time.Second,
			AllowRetry:     true,
		},
		MockPG: MockPG{
			MinLatency:    100 * time.Millisecond,
			MaxLatency:    500 * time.Millisecond,
			DeclinePrefix: "9999",
		},
		Reconcile: Reconcile{
			Interval:   30 * time.Second,
			StaleAfter: time.Minute,
			BatchSize:  100,
		},
		OTelServiceName: "ordering-service",
		LogLevel:        "info",
	}
}

// Load builds the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.GRPCPort = getEnv("GRPC_PORT", c.GRPCPort)
	c.DB.Driver = getEnv("DB_DRIVER", c.DB.Driver)
	c.DB.DSN = getEnv("DB_DSN", c.DB.DSN)
	c.DB.JournalPath = getEnv("JOURNAL_PATH", c.DB.JournalPath)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.MockPG.DeclinePrefix = getEnv("MOCKPG_DECLINE_PREFIX", c.MockPG.DeclinePrefix)
	c.OTelServiceName = getEnv("OTEL_SERVICE_NAME", c.OTelServiceName)
	c.OTelEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTelEndpoint)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}
	set(getDuration("PAYMENT_GATEWAY_TIMEOUT", &c.Payment.GatewayTimeout))
	set(getBool("PAYMENT_ALLOW_RETRY", &c.Payment.AllowRetry))
	set(getDuration("MOCKPG_MIN_LATENCY", &c.MockPG.MinLatency))
	set(getDuration("MOCKPG_MAX_LATENCY", &c.MockPG.MaxLatency))
	set(getDuration("RECONCILE_INTERVAL", &c.Reconcile.Interval))
	set(getDuration("RECONCILE_STALE_AFTER", &c.Reconcile.StaleAfter))
	set(getInt("RECONCILE_BATCH_SIZE", &c.Reconcile.BatchSize))
	set(getBool("SEED_DEMO_DATA", &c.SeedDemoData))
	return err
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("config: DB_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.Payment.GatewayTimeout <= 0 {
		return errors.New("config: PAYMENT_GATEWAY_TIMEOUT must be positive")
	}
	if c.Reconcile.Interval <= 0 {
		return errors.New("config: RECONCILE_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func getBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}

func getInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}
