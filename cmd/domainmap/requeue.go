package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"
)

// NewRequeueCmd creates the requeue command.
func NewRequeueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requeue [consumer]...",
		Short: "Put unfinished or dead tasks back in the queue",
		Long: `Requeue returns tasks to the pending list of the Redis queue.

Without arguments, it recovers the tasks held by every consumer whose
heartbeat has expired, which is what a crawl does on start. With consumer
names, it recovers those consumers unconditionally; only name consumers
that are known to be stopped.

With --dead-letters, tasks that exhausted their attempts are queued again
as first attempts.

Examples:
  domainmap requeue
  domainmap requeue host-a:1234
  domainmap requeue --dead-letters`,
		RunE: runRequeueCmd,
	}
	cmd.Flags().Bool("dead-letters", false, "Requeue dead-lettered tasks")
	return cmd
}

// runRequeueCmd executes the requeue command.
func runRequeueCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	deadLetters, err := cmd.Flags().GetBool("dead-letters")
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, slog.LevelWarn)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	q, err := openRedisQueue(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "queue", q)

	if deadLetters {
		n, err := q.RequeueDead(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Requeued %d dead tasks\n", n)
		return nil
	}

	recovered := make(map[string]int)
	if len(args) == 0 {
		if recovered, err = q.RecoverDead(ctx); err != nil {
			return err
		}
	}
	for _, consumer := range args {
		n, err := q.Recover(ctx, consumer)
		if err != nil {
			return err
		}
		recovered[consumer] = n
	}

	consumers := make([]string, 0, len(recovered))
	for c := range recovered {
		consumers = append(consumers, c)
	}
	sort.Strings(consumers)

	total := 0
	for _, c := range consumers {
		fmt.Fprintf(out, "Recovered %d tasks from %s\n", recovered[c], c)
		total += recovered[c]
	}
	fmt.Fprintf(out, "Recovered %d tasks in total\n", total)
	return nil
}
