package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edutrack/progress-engine/config"
	"github.com/edutrack/progress-engine/pkg/logger"
)

// cli carries the persistent flags shared by every subcommand.
type cli struct {
	tenant     string
	sqlitePath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "progressctl",
		Short: "Operate the progress aggregation and alerting engine",
		Long: "progressctl records daily progress logs, reads cached progress metrics " +
			"and manages low-accuracy alerts for a teacher's students.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.tenant, "tenant", "", "Calling teacher ID (scopes every read and write)")
	pf.StringVar(&c.sqlitePath, "sqlite", "", "Use the SQLite file at this path (overrides DATABASE_DRIVER)")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	root.AddCommand(newMigrateCmd(c))
	root.AddCommand(newCatalogCmd(c))
	root.AddCommand(newAssignCmd(c))
	root.AddCommand(newLogCmd(c))
	root.AddCommand(newMetricsCmd(c))
	root.AddCommand(newAlertsCmd(c))
	root.AddCommand(newThresholdCmd(c))
	root.AddCommand(newSweepCmd(c))
	return root
}

// run wraps a command body with config loading and application wiring.
// Resources are released when the body returns, even on error.
func (c *cli) run(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var opts []config.Option
		if c.sqlitePath != "" {
			opts = append(opts, config.WithSQLite(c.sqlitePath))
		}
		if c.logLevel != "" {
			opts = append(opts, config.WithLogLevel(c.logLevel))
		}
		cfg, err := config.Load(opts...)
		if err != nil {
			return err
		}

		log, err := logger.New(logger.Options{
			Level:     logger.ParseLevel(cfg.Observability.LogLevel),
			Format:    cfg.Observability.LogFormat,
			AddCaller: cfg.IsDevelopment(),
		})
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer log.Sync()

		a, err := newApp(cmd.Context(), cfg, log.With(logger.Operation(cmd.CommandPath())))
		if err != nil {
			return err
		}
		defer a.close()

		return fn(cmd, args, a)
	}
}

func (c *cli) requireTenant() (string, error) {
	if c.tenant == "" {
		return "", errNoTenant
	}
	return c.tenant, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
