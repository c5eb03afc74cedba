package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ExplorerURL     string        `env:"EXPLORER_URL" envDefault:"https://explorer.inkonchain.com/api/v2"`
	ExplorerRPS     float64       `env:"EXPLORER_RPS" envDefault:"10"`
	ExplorerBurst   int           `env:"EXPLORER_BURST" envDefault:"5"`
	ExplorerTimeout time.Duration `env:"EXPLORER_TIMEOUT" envDefault:"20s"`
	PriceURL        string        `env:"PRICE_URL" envDefault:"https://api.coinbase.com/v2/prices/ETH-USD/spot"`
	PriceTTL        time.Duration `env:"PRICE_TTL" envDefault:"60s"`
	RulesFile       string        `env:"RULES_FILE"`

	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	SnapshotCacheTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"0s"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	OtelEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelSampleRatio  float64       `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"walletfeed.db"`

	KafkaBrokers   []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic     string        `env:"KAFKA_TOPIC" envDefault:"walletfeed-activity"`
	ExportInterval time.Duration `env:"EXPORT_INTERVAL" envDefault:"1m"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
}

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type EnvSource interface {
	Lookup(key string) (string, bool)
	Keys() []string
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func (e EnvMap) Keys() []string {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	return keys
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}
	environment := make(map[string]string)
	for _, key := range source.Keys() {
		if value, ok := source.Lookup(key); ok {
			environment[key] = value
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.ExplorerURL = strings.TrimRight(strings.TrimSpace(c.ExplorerURL), "/")
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	c.OtelEndpoint = strings.TrimSpace(c.OtelEndpoint)
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	brokers := c.KafkaBrokers[:0]
	for _, broker := range c.KafkaBrokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	c.KafkaBrokers = brokers
}

func (c Config) validate() error {
	if c.ExplorerURL == "" {
		return errors.New("EXPLORER_URL is required")
	}
	switch c.DBDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want sqlite or mysql", c.DBDriver)
	}
	if c.ExplorerRPS < 0 {
		return errors.New("EXPLORER_RPS must not be negative")
	}
	if c.SnapshotCacheTTL < 0 {
		return errors.New("SNAPSHOT_CACHE_TTL must not be negative")
	}
	if c.ExportInterval <= 0 {
		return errors.New("EXPORT_INTERVAL must be positive")
	}
	return nil
}
