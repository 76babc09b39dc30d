package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "docmodel_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, BackendMongo, cfg.Store.Backend)
	require.Equal(t, "docmodel_test", cfg.MongoDB.Database)
	require.Equal(t, 10*time.Second, cfg.MongoDB.Timeout)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, 2.5, cfg.RateLimit.RPS)
	require.Equal(t, time.Second, cfg.RateLimit.Window)
	require.Equal(t, "models.yaml", cfg.Models.Path)
}

func TestLoadConfigDefaultsToMemory(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("MONGODB_URI", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigRejectsInvalidBackends(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("MONGODB_URI", "")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "MONGODB_URI")

	t.Setenv("STORE_BACKEND", "cassandra")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "unknown STORE_BACKEND")
}
