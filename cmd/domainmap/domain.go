package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/domainmap/internal/database"
	"github.com/nao1215/domainmap/internal/report"
)

// NewDomainCmd creates the domain command.
func NewDomainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain <name>",
		Short: "Show everything known about a domain",
		Long: `Domain prints the stored record of one domain: its status, the response
headers of the first successful fetch, the time the fetch took, and the
address, autonomous system and country found for it.

Examples:
  domainmap domain example.com
  domainmap domain example.com --json`,
		Args: cobra.ExactArgs(1),
		RunE: runDomainCmd,
	}
	addReportFlags(cmd)
	return cmd
}

// runDomainCmd executes the domain command.
func runDomainCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names, err := normalizeSeeds(args)
	if err != nil {
		return err
	}
	name := names[0]
	logger := newLogger(cmd, cfg, slog.LevelWarn)

	db, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "database", db)

	record, err := db.Find(cmd.Context(), name)
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "No information on %s\n", name)
		return nil
	}
	if err != nil {
		return err
	}

	w, err := report.New(reportFormat(cfg), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = w.WriteDomain(record)
	return err
}
