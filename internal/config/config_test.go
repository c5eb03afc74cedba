package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(EnvMap{})
	require.NoError(t, err)
	require.Equal(t, "https://explorer.inkonchain.com/api/v2", cfg.ExplorerURL)
	require.Equal(t, 10.0, cfg.ExplorerRPS)
	require.Equal(t, 60*time.Second, cfg.PriceTTL)
	require.Equal(t, DriverSQLite, cfg.DBDriver)
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "walletfeed-activity", cfg.KafkaTopic)
	require.Equal(t, time.Minute, cfg.ExportInterval)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Empty(t, cfg.RedisAddr)
	require.Zero(t, cfg.SnapshotCacheTTL, "snapshot cache is opt-in")
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(EnvMap{
		"EXPLORER_URL":       "https://explorer.example/api/v2/",
		"EXPLORER_RPS":       "2.5",
		"DB_DRIVER":          " MySQL ",
		"DB_DSN":             "user:pass@tcp(db:3306)/walletfeed",
		"KAFKA_BROKERS":      "kafka-1:9092, kafka-2:9092,,",
		"SNAPSHOT_CACHE_TTL": "45s",
		"REDIS_ADDR":         " redis:6379 ",
		"LOG_FORMAT":         "json",
		"EXPORT_INTERVAL":    "15s",
	})
	require.NoError(t, err)
	require.Equal(t, "https://explorer.example/api/v2", cfg.ExplorerURL)
	require.Equal(t, 2.5, cfg.ExplorerRPS)
	require.Equal(t, DriverMySQL, cfg.DBDriver)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 45*time.Second, cfg.SnapshotCacheTTL)
	require.Equal(t, "redis:6379", cfg.RedisAddr)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 15*time.Second, cfg.ExportInterval)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]EnvMap{
		"driver":       {"DB_DRIVER": "postgres"},
		"duration":     {"PRICE_TTL": "soon"},
		"negative rps": {"EXPLORER_RPS": "-1"},
		"negative ttl": {"SNAPSHOT_CACHE_TTL": "-5s"},
		"interval":     {"EXPORT_INTERVAL": "0s"},
		"number":       {"EXPLORER_BURST": "many"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(env)
			require.Error(t, err)
		})
	}
}

func TestLoad_RequiresSource(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
}
