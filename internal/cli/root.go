// Package cli implements the taskctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/internal/app"
	"github.com/fastygo/taskplanner/internal/config"
	"github.com/fastygo/taskplanner/internal/services"
	"github.com/fastygo/taskplanner/internal/services/lifecycle"
	"github.com/fastygo/taskplanner/pkg/logger"
	taskUC "github.com/fastygo/taskplanner/usecase/task"
)

// Env carries what every command needs. LoadConfig is replaced in tests.
type Env struct {
	LoadConfig func() (*config.Config, error)
	LogOutput  io.Writer
}

type globalFlags struct {
	driver     string
	sqlitePath string
	owner      string
	logLevel   string
}

// NewRootCommand builds taskctl.
func NewRootCommand(env Env, version string) *cobra.Command {
	if env.LoadConfig == nil {
		env.LoadConfig = config.Load
	}
	if env.LogOutput == nil {
		env.LogOutput = os.Stderr
	}
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage the task graph from the command line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.driver, "driver", "", "storage driver: postgres, sqlite or memory (default from STORAGE_DRIVER)")
	root.PersistentFlags().StringVar(&flags.sqlitePath, "sqlite-path", "", "SQLite database file (default from SQLITE_PATH)")
	root.PersistentFlags().StringVar(&flags.owner, "owner", "", "owner id the commands act for (default from MCP_OWNER_ID)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (default from LOG_LEVEL)")

	root.AddCommand(
		newMCPCommand(env, flags),
		newImportCommand(env, flags),
		newGraphCommand(env, flags),
		newMigrateCommand(env, flags),
	)
	return root
}

// session is an opened store plus the task use case on top of it.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	tasks   *taskUC.UseCase
	owner   string
	manager *lifecycle.Manager
}

func (s *session) Close() error {
	err := s.manager.Shutdown(context.Background())
	_ = s.logger.Sync()
	return err
}

func (f *globalFlags) config(env Env) (*config.Config, *zap.Logger, error) {
	cfg, err := env.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if f.driver != "" {
		cfg.Storage.Driver = f.driver
	}
	if f.sqlitePath != "" {
		cfg.Storage.SQLitePath = f.sqlitePath
	}
	if f.logLevel != "" {
		cfg.Logger.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   env.LogOutput,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// open connects the configured store. Events are written straight to the
// event log; the CLI runs no outbox.
func (f *globalFlags) open(ctx context.Context, env Env, needOwner bool) (*session, error) {
	cfg, log, err := f.config(env)
	if err != nil {
		return nil, err
	}
	owner := f.owner
	if owner == "" {
		owner = cfg.MCP.OwnerID
	}
	if needOwner && owner == "" {
		return nil, fmt.Errorf("an owner is required: pass --owner or set MCP_OWNER_ID")
	}

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, log)
	stores, err := app.Open(ctx, cfg, log, manager)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		return nil, err
	}
	sink := services.NewEventProcessor(nil, stores.Events, nil, log, services.ProcessorConfig{})
	return &session{
		cfg:     cfg,
		logger:  log,
		tasks:   stores.TaskUseCase(cfg, sink, log),
		owner:   owner,
		manager: manager,
	}, nil
}
