package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Ingestion.SkillFloor)
	assert.Equal(t, 35, cfg.Ingestion.SkillCeiling)
	assert.InDelta(t, 0.85, cfg.Weights.Skill, 1e-9)
	assert.Equal(t, 3, cfg.Weights.MinSkillFloor)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  readTimeout: 5s
store:
  driver: memory
ingestion:
  skillFloor: 4
  skillCeiling: 20
  headerOverrides:
    "Job Ref": external_order_id
`), 0o644))

	t.Setenv("TM_SERVER_PORT", "9100")
	t.Setenv("TM_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Ingestion.SkillFloor)
	assert.Equal(t, "external_order_id", cfg.Ingestion.HeaderOverrides["Job Ref"])
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 12, cfg.Ingestion.SyntheticTarget, "unset fields keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"floor above ceiling", func(c *Config) { c.Ingestion.SkillFloor = 40 }},
		{"zero ceiling", func(c *Config) { c.Ingestion.SkillCeiling = 0 }},
		{"no conflict retries", func(c *Config) { c.Ingestion.ConflictRetries = 0 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"max below default top k", func(c *Config) { c.Matching.MaxTopK = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}
