package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// NewDedupeCmd creates the dedupe command.
func NewDedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Remove duplicate domains from the queue",
		Long: `Dedupe removes repeated domains from the pending tasks of the Redis queue,
keeping the oldest entry of each domain.

Queues written by this version never hold duplicates. Dedupe cleans queues
filled by older producers or by hand.

Stop every crawl and insert process before running dedupe. It rewrites the
queue in place and can drop or duplicate tasks pushed while it runs.`,
		Args: cobra.NoArgs,
		RunE: runDedupeCmd,
	}
	cmd.Flags().Bool("no-progress", false, "Do not draw a progress bar")
	return cmd
}

// runDedupeCmd executes the dedupe command.
func runDedupeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	noProgress, err := cmd.Flags().GetBool("no-progress")
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, slog.LevelWarn)
	ctx := cmd.Context()

	q, err := openRedisQueue(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "queue", q)

	fmt.Fprintln(cmd.ErrOrStderr(), "Warning: make sure no crawler or insert process is using the queue")

	var progress func(scanned, total int64)
	var wait func()
	if !noProgress {
		p := mpb.NewWithContext(ctx, mpb.WithOutput(cmd.ErrOrStderr()), mpb.WithWidth(60))
		var bar *mpb.Bar
		progress = func(scanned, total int64) {
			if bar == nil {
				bar = p.New(total,
					mpb.BarStyle(),
					mpb.PrependDecorators(decor.Name("dedupe", decor.WCSyncWidth)),
					mpb.AppendDecorators(
						decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
						decor.Percentage(decor.WCSyncSpace),
					),
				)
			}
			bar.SetCurrent(scanned)
		}
		wait = func() {
			if bar != nil {
				// Complete the bar even when the run stopped early
				bar.SetTotal(-1, true)
			}
			p.Wait()
		}
	}

	result, err := q.Dedupe(ctx, progress)
	if wait != nil {
		wait()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d tasks, removed %d duplicates\n", result.Scanned, result.Removed)
	return nil
}
