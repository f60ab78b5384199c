package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/database"
	"github.com/nao1215/domainmap/internal/report"
)

// NewTopCmd creates the top command and its subcommands.
func NewTopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show where successful domains are hosted",
		Long: `Top ranks successfully crawled domains by the autonomous system or the
country hosting them. Domains without the value, because enrichment found
nothing, are left out.

Examples:
  domainmap top as
  domainmap top countries --count 30 --markdown`,
	}

	cmd.AddCommand(newTopSubCmd("as", "Most popular autonomous systems", "Autonomous Systems", database.GroupByASN))
	cmd.AddCommand(newTopSubCmd("countries", "Most popular countries", "countries", database.GroupByCountry))

	return cmd
}

// newTopSubCmd creates one ranking command.
func newTopSubCmd(use, short, kind string, field database.GroupField) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTop(cmd, kind, field)
		},
	}
	cmd.Flags().IntP("count", "n", config.DefaultTopCount, "Number of entries to show")
	addReportFlags(cmd)
	return cmd
}

// runTop executes a ranking command.
func runTop(cmd *cobra.Command, kind string, field database.GroupField) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, slog.LevelWarn)

	db, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "database", db)

	groups, err := db.GroupCount(cmd.Context(), field, count)
	if err != nil {
		return err
	}

	top := &report.Top{Kind: kind, Limit: count, Entries: make([]report.TopEntry, 0, len(groups))}
	for _, g := range groups {
		top.Entries = append(top.Entries, report.TopEntry{Key: g.Key, Count: g.Count})
	}

	w, err := report.New(reportFormat(cfg), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = w.WriteTop(top)
	return err
}
