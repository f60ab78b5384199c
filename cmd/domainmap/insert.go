package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/domainmap/internal/links"
)

// NewInsertCmd creates the insert command.
func NewInsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <domain>...",
		Short: "Insert domains in the list to crawl",
		Long: `Insert queues domains for the crawl workers.

Names are lowercased and internationalized names are converted to their
ASCII form. A domain that is already waiting in the queue is not added twice.

Examples:
  domainmap insert example.com
  domainmap insert example.com bücher.example`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInsertCmd,
	}
}

// runInsertCmd executes the insert command.
func runInsertCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	domains, err := normalizeSeeds(args)
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

	out := cmd.OutOrStdout()
	for _, d := range domains {
		added, err := q.Submit(ctx, d)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(out, "Domain %s added to the queue\n", d)
		} else {
			fmt.Fprintf(out, "Domain %s is already queued\n", d)
		}
	}
	return nil
}

// normalizeSeeds converts user input to the names the crawler stores.
func normalizeSeeds(args []string) ([]string, error) {
	domains := make([]string, 0, len(args))
	for _, arg := range args {
		d, ok := links.NormalizeHost(arg)
		if !ok {
			return nil, fmt.Errorf("invalid domain name %q", arg)
		}
		domains = append(domains, d)
	}
	return domains, nil
}
