package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, "data/india_commodity_data.csv", c.Dataset.CSVPath)
	assert.Equal(t, 30, c.Models.Lookback)
	assert.Equal(t, 2500.0, c.Forecast.DefaultPrice)
	assert.Equal(t, "per quintal", c.Forecast.Unit)
	assert.Equal(t, 10*time.Second, c.Feed.Timeout)
	assert.Equal(t, AuditBackendSQLite, c.Audit.Backend)
	assert.Equal(t, AuditBackendSQLite, c.Audit.Store)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing environment": "server:\n  port: 1\n",
		"unknown backend":     "environment: t\naudit:\n  backend: mongo\n",
		"store mismatch":      "environment: t\naudit:\n  backend: sqlite\n  store: clickhouse\n",
		"kafka no brokers":    "environment: t\naudit:\n  backend: kafka\n",
		"feed without key":    "environment: t\nfeed:\n  enabled: true\n",
		"redis disabled":      "environment: t\naudit:\n  backend: redis\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestKafkaBackendWithClickHouseStore(t *testing.T) {
	doc := `
environment: t
audit:
  backend: kafka
  store: clickhouse
kafka:
  brokers: ["k1:9092"]
  topic: preds
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, AuditBackendClickHouse, c.Audit.Store)
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte("environment: t\n"))
	require.NoError(t, err)

	env := map[string]string{
		"CSV_PATH":      "/data/prices.csv",
		"CEDA_API_KEY":  "secret",
		"MODELS_DIR":    "/models",
		"AUDIT_BACKEND": "ClickHouse",
		"KAFKA_BROKERS": "a:1,b:2",
		"REDIS_ADDR":    "cache:6379",
		"LOG_LEVEL":     "debug",
	}
	c.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "/data/prices.csv", c.Dataset.CSVPath)
	assert.True(t, c.Feed.Enabled)
	assert.Equal(t, "secret", c.Feed.APIKey)
	assert.Equal(t, "/models", c.Models.Dir)
	assert.Equal(t, AuditBackendClickHouse, c.Audit.Backend)
	assert.Equal(t, AuditBackendClickHouse, c.Audit.Store)
	assert.Equal(t, []string{"a:1", "b:2"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "debug", c.Logging.Level)
	require.NoError(t, c.Validate())
}

func TestRedisBackend(t *testing.T) {
	doc := `
environment: t
audit:
  backend: redis
  store: sqlite
redis:
  enabled: true
  addr: localhost:6379
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.True(t, c.Audit.IsBroker())
	assert.False(t, c.Audit.IsStore())
	assert.Equal(t, 2, c.Redis.Queue.Workers)
	assert.Equal(t, 10*time.Second, c.Redis.Queue.RetryDelay)
}
