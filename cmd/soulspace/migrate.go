package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulspace/soulspace-hub/config"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/persistence/postgres"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	var down, status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list PostgreSQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down && status {
				return errors.New("--down and --status are mutually exclusive")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := newLogger(cfg).With(logger.Component("migrate"))

			if cfg.Storage.Driver != config.DriverPostgres {
				log.Info("sqlite applies its migrations when opened; nothing to do")
				return nil
			}

			ctx := cmd.Context()
			conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Storage))
			if err != nil {
				return err
			}
			defer conn.Close()
			migrator := postgres.NewMigrator(conn)

			switch {
			case status:
				migrations, err := migrator.Status(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
				for _, m := range migrations {
					applied := "-"
					if m.IsApplied {
						applied = m.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.Name, applied)
				}
				return tw.Flush()

			case down:
				rolled, err := migrator.Rollback(ctx)
				if err != nil {
					return err
				}
				if !rolled {
					log.Info("no migrations to roll back")
					return nil
				}
				log.Info("rolled back last migration")
				return nil

			default:
				applied, err := migrator.Migrate(ctx)
				if err != nil {
					return err
				}
				log.Info("migrations applied", logger.Int("count", applied))
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	cmd.Flags().BoolVar(&status, "status", false, "list migrations and when they were applied")
	return cmd
}
