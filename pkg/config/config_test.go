package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viperIn(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viperIn(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/sentience.db", cfg.SQLite.Path)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 20, cfg.LLM.BatchSize)
	assert.Equal(t, 365, cfg.Dashboard.DefaultLookbackDays)
	assert.Equal(t, 200, cfg.Dashboard.MaxEvidence)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9000
  allowedOrigins:
    - https://dash.example.com
data:
  csvPath: /srv/reviews.csv
  importOnStart: true
redis:
  enabled: true
  ttlSec: 30
tokenizer:
  extraStopwords: [pizza, restaurant]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("SENTIENCE_LLM_BATCHSIZE", "5")
	t.Setenv("SENTIENCE_SERVER_PORT", "9100")

	cfg, err := load(viperIn(dir))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/srv/reviews.csv", cfg.Data.CSVPath)
	assert.True(t, cfg.Data.ImportOnStart)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30, cfg.Redis.TTLSec)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 5, cfg.LLM.BatchSize)
	assert.Equal(t, []string{"pizza", "restaurant"}, cfg.Tokenizer.ExtraStopwords)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o600))

	_, err := load(viperIn(dir))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{Port: 8080},
			SQLite: SQLiteConfig{Path: "db"},
			LLM:    LLMConfig{BatchSize: 10},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	tests := map[string]func(*Config){
		"port":       func(c *Config) { c.Server.Port = 0 },
		"batch":      func(c *Config) { c.LLM.BatchSize = -1 },
		"sqlite":     func(c *Config) { c.SQLite.Path = "" },
		"redis port": func(c *Config) { c.Redis = RedisConfig{Enabled: true, Port: 70000} },
		"csv path":   func(c *Config) { c.Data = DataConfig{ImportOnStart: true} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
