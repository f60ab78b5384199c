package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/model"
	"github.com/nao1215/domainmap/internal/report"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics about domains",
		Long: `Stats prints how many domains were crawled successfully, how many failed,
and how many tasks are waiting in the queue.

The failure percentage is the share of failed domains among all finished
domains. Domains currently being crawled are not counted.

Examples:
  domainmap stats
  domainmap stats --json`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}
	addReportFlags(cmd)
	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, slog.LevelWarn)
	ctx := cmd.Context()

	db, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "database", db)

	var stats report.Stats
	if stats.Success, err = db.CountWhere(ctx, model.StatusSuccess); err != nil {
		return err
	}
	if stats.Failed, err = db.CountWhere(ctx, model.StatusFailure); err != nil {
		return err
	}

	// A memory queue only exists inside a crawl process
	if cfg.Broker == config.BrokerRedis {
		q, err := openRedisQueue(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeQuietly(logger, "queue", q)

		qs, err := q.Stats(ctx)
		if err != nil {
			return err
		}
		stats.Pending = qs.Pending + qs.Delayed
		stats.Dead = qs.Dead
	}

	w, err := report.New(reportFormat(cfg), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	_, err = w.WriteStats(&stats)
	return err
}
