package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghuser/lendingdesk/migrations"
	"github.com/ghuser/lendingdesk/pkg/migrator"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrator.Up(cmd.Context(), c.cfg.DatabaseURL, migrations.Lending()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return err
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrator.Down(cmd.Context(), c.cfg.DatabaseURL, migrations.Lending())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which migrations are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrator.Status(cmd.Context(), c.cfg.DatabaseURL, migrations.Lending())
			},
		},
	)
	return cmd
}
