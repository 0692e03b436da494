// Package cli provides the command-line interface for the event table.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/recordstore/internal/client"
	"github.com/rzpsarthak13/recordstore/internal/entity/event"
	"github.com/rzpsarthak13/recordstore/internal/registry"
)

// Version information (set at build time).
var Version = "0.1.0"

// app carries what the persistent pre-run opened for a subcommand.
type app struct {
	cfgFile string
	driver  string
	dsn     string
	output  string
	verbose bool

	logger *slog.Logger
	client *client.ClientImpl
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recordstore",
		Short: "Inspect and edit the alarm event table",
		Long: `recordstore reads and writes the alarm event table on SQLite, MySQL,
PostgreSQL or DuckDB, and can drain the change feed into the key-value mirror.

Configuration is layered: built-in defaults, the --config file, RECORDSTORE_*
environment variables, then --driver and --dsn.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (.yaml, .yml or .json)")
	flags.StringVar(&a.driver, "driver", "", "database driver: sqlite, mysql, postgres or duckdb")
	flags.StringVar(&a.dsn, "dsn", "", "database DSN, or the file path for sqlite and duckdb")
	flags.StringVarP(&a.output, "output", "o", "table", "output format (table|json)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging to stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("driver", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"sqlite", "mysql", "postgres", "duckdb"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newCreateCommand(a),
		newDropCommand(a),
		newInsertCommand(a),
		newListCommand(a),
		newSelectCommand(a),
		newSeekCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newAggregateCommand(a),
		newLookupCommand(a),
		newHistoryCommand(a),
		newDrainCommand(a),
		newTablesCommand(a),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	a := &app{}
	rootCmd := newRootCmd(a)
	// post-run hooks are skipped when a command fails
	defer a.close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func (a *app) open(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	overrides := make(map[string]interface{})
	if a.driver != "" {
		overrides["database.driver"] = a.driver
	}
	if a.dsn != "" {
		overrides["database.dsn"] = a.dsn
	}

	cm := registry.NewConfigManager()
	if err := cm.Load(a.cfgFile, overrides); err != nil {
		return err
	}

	c, err := client.NewClientFromManager(cmd.Context(), cm, a.logger)
	if err != nil {
		return err
	}
	a.client = c
	return nil
}

func (a *app) close() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// events opens the event table for a subcommand.
func (a *app) events(cmd *cobra.Command) (*event.Store, error) {
	if a.client == nil {
		return nil, fmt.Errorf("client is not initialized")
	}
	return a.client.Events(cmd.Context())
}
