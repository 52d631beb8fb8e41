package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskplanner/internal/config"
	pgInfra "github.com/fastygo/taskplanner/internal/infrastructure/postgres"
	sqliteInfra "github.com/fastygo/taskplanner/internal/infrastructure/sqlite"
	"github.com/fastygo/taskplanner/internal/mcp"
)

func newMCPCommand(env Env, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout.

All tools act on the tasks of a single owner, taken from --owner or
MCP_OWNER_ID. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := flags.open(cmd.Context(), env, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return mcp.Serve(mcp.NewServer(s.tasks, s.owner))
		},
	}
}

func newImportCommand(env Env, flags *globalFlags) *cobra.Command {
	var opts struct {
		File   string
		DryRun bool
	}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create tasks, subtasks and dependencies from a YAML plan",
		Long: `Import a YAML plan of tasks.

Example plan:
  tasks:
    - key: schema
      title: Design schema
      complexity: complex
      subtasks:
        - title: Draft ERD
    - key: api
      title: Build API
      depends_on: [schema]

Keys are local to the file and only used to express depends_on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(opts.File)
			if err != nil {
				return err
			}
			defer f.Close()
			plan, err := ParsePlan(f)
			if err != nil {
				return err
			}

			if opts.DryRun {
				entries, err := plan.Validate(time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan is valid: %d task(s)\n", len(entries))
				return nil
			}

			s, err := flags.open(cmd.Context(), env, true)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := plan.Apply(cmd.Context(), s.tasks, s.owner, time.Now())
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d task(s) and %d dependency link(s)\n", res.Tasks, res.Dependencies)
				for key, id := range res.IDs {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\t%s\n", key, id)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "plan file (YAML)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate the plan without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newGraphCommand(env Env, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the owner's task graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := flags.open(cmd.Context(), env, true)
			if err != nil {
				return err
			}
			defer s.Close()

			g, err := s.tasks.Graph(cmd.Context(), s.owner)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(g)
		},
	}
}

func newMigrateCommand(env Env, flags *globalFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending schema migrations for the configured driver.

postgres runs the files under --path (default MIGRATIONS_PATH).
sqlite applies its embedded schema on open. memory has nothing to migrate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.config(env)
			if err != nil {
				return err
			}
			defer log.Sync()
			if path == "" {
				path = cfg.Migrations.Path
			}

			switch cfg.Storage.Driver {
			case config.DriverPostgres:
				if err := pgInfra.Migrate(cfg.Database, path, log); err != nil {
					return err
				}
			case config.DriverSQLite:
				db, err := sqliteInfra.Open(cmd.Context(), cfg.Storage.SQLitePath, log)
				if err != nil {
					return err
				}
				if err := db.Close(); err != nil {
					return err
				}
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to migrate for the memory driver")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", cfg.Storage.Driver)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "migrations directory for postgres")
	return cmd
}
