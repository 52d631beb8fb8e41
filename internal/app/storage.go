// Package app assembles the storage backends and use cases shared by the
// HTTP server and the taskctl CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/internal/config"
	"github.com/fastygo/taskplanner/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskplanner/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskplanner/internal/infrastructure/redis"
	sqliteInfra "github.com/fastygo/taskplanner/internal/infrastructure/sqlite"
	"github.com/fastygo/taskplanner/internal/services/lifecycle"
	"github.com/fastygo/taskplanner/repository"
	"github.com/fastygo/taskplanner/repository/memory"
	"github.com/fastygo/taskplanner/repository/postgres"
	redisRepo "github.com/fastygo/taskplanner/repository/redis"
	sqliteRepo "github.com/fastygo/taskplanner/repository/sqlite"
	"github.com/fastygo/taskplanner/usecase"
	taskUC "github.com/fastygo/taskplanner/usecase/task"
)

// Stores holds the repositories of the configured backends together with
// the health checks they contribute.
type Stores struct {
	Tasks      repository.TaskRepository
	Users      repository.UserRepository
	Events     repository.EventRepository
	Sessions   repository.SessionRepository
	GraphCache repository.GraphCache
	Checks     []monitor.Check
}

// Open connects the storage driver and, when enabled, Redis. Every opened
// resource is registered with manager for shutdown.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stores{}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, logger)
			return nil
		})
		s.Tasks = postgres.NewTaskRepository(pool)
		s.Users = postgres.NewUserRepository(pool)
		s.Events = postgres.NewEventRepository(pool)
		s.Checks = append(s.Checks, monitor.PingCheck("database", true, pool))

	case config.DriverSQLite:
		db, err := sqliteInfra.Open(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		manager.Register("sqlite", lifecycle.Closer(db.Close))
		s.Tasks = sqliteRepo.NewTaskRepository(db)
		s.Users = sqliteRepo.NewUserRepository(db)
		s.Events = sqliteRepo.NewEventRepository(db)
		s.Checks = append(s.Checks, monitor.PingCheck("database", true, sqliteInfra.Pinger{DB: db}))

	default:
		logger.Warn("using in-memory storage; data is lost on exit")
		s.Tasks = memory.NewTaskRepository()
		s.Users = memory.NewUserRepository()
		s.Events = memory.NewEventRepository()
	}

	if !cfg.Redis.Enabled {
		s.Sessions = memory.NewSessionRepository(cfg.JWT.TokenTTL)
		return s, nil
	}
	client, err := redisInfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	manager.Register("redis", lifecycle.Closer(client.Close))
	s.Sessions = redisRepo.NewSessionRepository(client, cfg.JWT.TokenTTL)
	s.GraphCache = redisRepo.NewGraphCache(client, cfg.Redis.GraphCacheTTL)
	s.Checks = append(s.Checks, monitor.RedisCheck("redis", true, client))
	return s, nil
}

// TaskUseCase builds the task graph store from the configured rules.
func (s *Stores) TaskUseCase(cfg *config.Config, events usecase.EventSink, logger *zap.Logger) *taskUC.UseCase {
	return taskUC.New(s.Tasks, events, s.GraphCache, taskUC.Config{
		CyclePolicy:       domain.CyclePolicy(cfg.Tasks.CyclePolicy),
		PruneOnDelete:     cfg.Tasks.PruneOnDelete,
		OverloadThreshold: cfg.Tasks.OverloadThreshold,
	}, logger)
}
