package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)

	assert.Empty(t, cfg.Store.Nodes)
	assert.Equal(t, 5*time.Second, cfg.Store.NodeTimeout)

	assert.Equal(t, 2*time.Second, cfg.Fetch.InitialBackoff)
	assert.Equal(t, 16*time.Second, cfg.Fetch.MaxBackoff)
	assert.Equal(t, 5, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Budget)

	assert.Equal(t, 4, cfg.Publish.ConfirmAttempts)
	assert.Equal(t, 2*time.Second, cfg.Publish.ConfirmBackoff)

	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, 24*time.Hour, cfg.Session.Expiry)
	assert.Equal(t, "wallet-sync-engine", cfg.Session.Issuer)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	content := []byte(`
server:
  host: "127.0.0.1"
  port: 9090
  mode: "release"
store:
  nodes:
    - "http://node-a.internal:7000"
    - "http://node-b.internal:7000"
  node_timeout: "3s"
fetch:
  initial_backoff: "1s"
  max_attempts: 8
cache:
  ttl: "5m"
log:
  level: "debug"
`)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)

	assert.Equal(t, []string{"http://node-a.internal:7000", "http://node-b.internal:7000"}, cfg.Store.Nodes)
	assert.Equal(t, 3*time.Second, cfg.Store.NodeTimeout)

	assert.Equal(t, time.Second, cfg.Fetch.InitialBackoff)
	assert.Equal(t, 8, cfg.Fetch.MaxAttempts)
	// Unspecified keys keep their defaults.
	assert.Equal(t, 16*time.Second, cfg.Fetch.MaxBackoff)

	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WSE_REDIS_HOST", "redis.internal")
	t.Setenv("WSE_SERVER_PORT", "9999")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", r.Addr())
}
