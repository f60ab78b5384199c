package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the domain database",
		Long: `Migrate creates the domain database and its indexes if they do not exist.
Running it on an existing database is safe and changes nothing.

The crawl command provisions the database too, so migrate is only needed
to prepare a database before the first crawl or on a shared volume.`,
		Args: cobra.NoArgs,
		RunE: runMigrateCmd,
	}
}

// runMigrateCmd executes the migrate command.
func runMigrateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, slog.LevelWarn)

	db, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "database", db)

	if err := db.Provision(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database ready: %s\n", db.Path())
	return nil
}
