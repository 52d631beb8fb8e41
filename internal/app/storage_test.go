package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/internal/config"
	"github.com/fastygo/taskplanner/internal/services/lifecycle"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Driver: driver},
		JWT:     config.JWTConfig{TokenTTL: time.Hour},
		Tasks:   config.TasksConfig{CyclePolicy: "direct"},
	}
}

func TestOpenMemory(t *testing.T) {
	manager := lifecycle.New(time.Second, nil)
	stores, err := Open(context.Background(), testConfig(config.DriverMemory), nil, manager)
	require.NoError(t, err)
	assert.NotNil(t, stores.Tasks)
	assert.NotNil(t, stores.Sessions)
	assert.Nil(t, stores.GraphCache)
	assert.Empty(t, stores.Checks)
}

func TestOpenSQLiteAndTaskUseCase(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverSQLite)
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "tasks.db")

	manager := lifecycle.New(time.Second, nil)
	stores, err := Open(ctx, cfg, nil, manager)
	require.NoError(t, err)
	require.Len(t, stores.Checks, 1)
	assert.Equal(t, "database", stores.Checks[0].Name)

	uc := stores.TaskUseCase(cfg, nil, nil)
	a, err := uc.Create(ctx, "u1", domain.TaskInput{Title: "Task A"})
	require.NoError(t, err)
	b, err := uc.Create(ctx, "u1", domain.TaskInput{Title: "Task B"})
	require.NoError(t, err)
	c, err := uc.Create(ctx, "u1", domain.TaskInput{Title: "Task C"})
	require.NoError(t, err)

	_, err = uc.AddDependency(ctx, "u1", a.ID, b.ID)
	require.NoError(t, err)
	_, err = uc.AddDependency(ctx, "u1", b.ID, c.ID)
	require.NoError(t, err)
	// direct policy only rejects the immediate reverse edge
	_, err = uc.AddDependency(ctx, "u1", c.ID, a.ID)
	assert.NoError(t, err)

	require.NoError(t, manager.Shutdown(ctx))
}
