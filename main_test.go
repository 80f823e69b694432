package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.app/config"
)

// Test environment variable loading used by main
func TestEnvironmentVariableHandling(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.test:6379")
	t.Setenv("SERVER_PORT", "9091")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "redis.example.test:6379", cfg.Redis.Addr)
	assert.Equal(t, 9091, cfg.Server.Port)
}

func TestDefaultConfiguration(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 300, cfg.Cache.RequestTTLSeconds)
}
