package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("CYCLE_POLICY", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "transitive", cfg.Tasks.CyclePolicy)
	assert.Equal(t, 4, cfg.Tasks.OverloadThreshold)
	assert.False(t, cfg.Tasks.PruneOnDelete)
	assert.Contains(t, cfg.Database.URL, "postgres://")
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("CYCLE_POLICY", "direct")
	t.Setenv("PRUNE_ON_DELETE", "true")
	t.Setenv("GRAPH_CACHE_TTL", "90s")
	t.Setenv("SYNC_INTERVAL_SECONDS", "5")
	t.Setenv("CALENDAR_OVERLOAD_THRESHOLD", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "direct", cfg.Tasks.CyclePolicy)
	assert.True(t, cfg.Tasks.PruneOnDelete)
	assert.Equal(t, 90*time.Second, cfg.Redis.GraphCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Buffer.SyncInterval)
	assert.Equal(t, 6, cfg.Tasks.OverloadThreshold)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CYCLE_POLICY", "sometimes")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		Storage:     StorageConfig{Driver: DriverMemory},
		Tasks:       TasksConfig{CyclePolicy: "direct"},
	}
	assert.Error(t, cfg.Validate())
	cfg.JWT.Secret = "s3cret"
	assert.NoError(t, cfg.Validate())
}
