package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4200, cfg.API.Port)
	assert.False(t, cfg.API.TLS)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.API.AllowedOrigins)
	assert.Equal(t, 100, cfg.API.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.Search.BatchSize)
	assert.Equal(t, 10000, cfg.Search.MaxResults)
	assert.Equal(t, 20*time.Minute, cfg.CSRF.TokenTTL)
	assert.Equal(t, 30, cfg.Retention.Logs)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("SIEM_API_PORT", "9999")
	t.Setenv("SIEM_DATA_DIR", "/tmp/siemdata")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.API.Port)
	assert.Equal(t, "/tmp/siemdata", cfg.GetDataDir())
	assert.Equal(t, filepath.Join("/tmp/siemdata", "siem.db"), cfg.GetSQLitePath())
	assert.Equal(t, filepath.Join("/tmp/siemdata", "rules"), cfg.GetRulesDir())
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	resetViper(t)
	t.Setenv("SIEM_API_PORT", "70000")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_RetentionCutoffAge(t *testing.T) {
	var cfg Config

	cfg.Retention.Logs = 30
	assert.Equal(t, 30*24*time.Hour, cfg.RetentionCutoffAge())

	cfg.Retention.Logs = 0
	assert.Zero(t, cfg.RetentionCutoffAge())
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		var cfg Config
		cfg.API.Port = 4200
		cfg.API.AllowedOrigins = []string{"http://localhost:8080"}
		return &cfg
	}

	assert.NoError(t, validateConfig(valid()))

	tls := valid()
	tls.API.TLS = true
	assert.Error(t, validateConfig(tls), "TLS without cert paths")

	origin := valid()
	origin.API.AllowedOrigins = []string{"not a url"}
	assert.Error(t, validateConfig(origin))

	rate := valid()
	rate.API.RateLimit.Burst = -1
	assert.Error(t, validateConfig(rate))
}
