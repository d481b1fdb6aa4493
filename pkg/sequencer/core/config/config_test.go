package config_test

import (
	"testing"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
sequencer:
  system:
    logging:
      level: DEBUG
  server:
    address: ":9090"
  infrastructure:
    sequencer_db_ref: main
  telemetry:
    metrics_backend: otel
    otlp_endpoint: ${TEST_OTLP_ENDPOINT}
  adapter:
    database:
      main:
        type: sqlite
        database: ":memory:"
        pool:
          max_open_conns: 1
`

func TestLoadConfig_LayersDefaultsYAMLAndEnv(t *testing.T) {
	t.Setenv("TEST_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("SEQUENCER_SERVER_WRITE_TIMEOUT_SECONDS", "45")
	t.Setenv("SEQUENCER_ADAPTER_DATABASE_MAIN_PASSWORD", "s3cret")
	t.Setenv("SEQUENCER_ADAPTER_DATABASE_MAIN_POOL__MAX_IDLE_CONNS", "3")

	cfg, err := config.LoadConfig("", config.EmbeddedConfig(testYAML))
	require.NoError(t, err)

	seq := cfg.Sequencer
	assert.Equal(t, "DEBUG", seq.System.Logging.Level)
	assert.Equal(t, "UTC", seq.System.Timezone, "default kept")
	assert.Equal(t, ":9090", seq.Server.Address)
	assert.Equal(t, 15, seq.Server.ReadTimeoutSeconds, "default kept")
	assert.Equal(t, 45, seq.Server.WriteTimeoutSeconds, "env override")
	assert.Equal(t, "main", seq.Infrastructure.SequencerDBRef)
	assert.Equal(t, "otel", seq.Telemetry.MetricsBackend)
	assert.Equal(t, "collector:4317", seq.Telemetry.OTLPEndpoint)

	db := cfg.AdapterSection("database")
	require.NotNil(t, db)
	main, ok := db["main"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sqlite", main["type"])
	assert.Equal(t, "s3cret", main["password"])
	pool := main["pool"].(map[string]interface{})
	assert.Equal(t, 1, pool["max_open_conns"])
	assert.Equal(t, "3", pool["max_idle_conns"])
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	_, err := config.LoadConfig("", config.EmbeddedConfig("sequencer:\n  infrastructure:\n    repository: nosql\n"))
	assert.Error(t, err)

	_, err = config.LoadConfig("", config.EmbeddedConfig("sequencer: [unclosed"))
	assert.Error(t, err)
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()
	assert.Equal(t, "sql", cfg.Sequencer.Infrastructure.Repository)
	assert.Equal(t, "prometheus", cfg.Sequencer.Telemetry.MetricsBackend)
	assert.Equal(t, 60, cfg.Sequencer.Capability.TTLSeconds)
	assert.Nil(t, cfg.AdapterSection("storage"))
}

func TestOsEnvironmentExpander(t *testing.T) {
	t.Setenv("EXPANDER_TEST", "value")
	out, err := config.NewOsEnvironmentExpander().Expand([]byte("a=${EXPANDER_TEST} b=${EXPANDER_MISSING}"))
	require.NoError(t, err)
	assert.Equal(t, "a=value b=", string(out))
}
