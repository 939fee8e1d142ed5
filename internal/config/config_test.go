package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, defaultPoolSize, cfg.PoolSize)
	assert.Equal(t, defaultPopTimeout, cfg.PopTimeout)
	assert.False(t, cfg.Debug)
	assert.Equal(t, defaultLogFormat, cfg.LogFormat)
}

func TestLoad_EnvVarsOverrideDefaults(t *testing.T) {
	v := viper.New()
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvPoolSize, "8")
	t.Setenv(EnvPopTimeout, "10s")
	t.Setenv(EnvDebug, "true")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, 10*time.Second, cfg.PopTimeout)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_FlagOverridesEnvVar(t *testing.T) {
	v := viper.New()
	t.Setenv(EnvPoolSize, "8")
	v.Set(KeyPoolSize, 2) // simulates viper.BindPFlag picking up an explicitly-set flag

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.PoolSize)
}
