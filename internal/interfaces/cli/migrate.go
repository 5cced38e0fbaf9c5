package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolGenesis/internal/infrastructure/database/postgres"
)

// newMigrateCommand manages the molecule archive schema.
func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the molecule archive database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := newMigrator(opts)
				if err != nil {
					return err
				}
				return m.Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := newMigrator(opts)
				if err != nil {
					return err
				}
				return m.Down()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, err := newMigrator(opts)
				if err != nil {
					return err
				}
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%v\n", v, dirty)
				return nil
			},
		},
	)
	return cmd
}

func newMigrator(opts *rootOptions) (*postgres.Migrator, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return postgres.NewMigrator(cfg.Archive, log.Named("migrate")), nil
}
