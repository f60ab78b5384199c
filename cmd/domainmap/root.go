package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/domainmap/internal/config"
)

// NewRootCmd creates the root command for domainmap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domainmap",
		Short: "Distributed crawler mapping links between domains",
		Long: `domainmap crawls the web one domain at a time. For every domain it fetches
the front page, records the response headers, the IP address, the autonomous
system and the country hosting it, and queues every domain the page links to.

Any number of "domainmap crawl" processes can share one Redis queue and one
SQLite database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.StringP("config", "c", "",
		"Configuration file path (default: .domainmap in current directory or XDG config dir)")
	flags.String("db-dir", "", "Directory of the domain database (default: XDG data dir)")
	flags.String("redis-url", "", "Redis URL of the task queue (default: "+config.DefaultRedisURL+")")
	flags.String("queue-name", "", "Prefix of the Redis keys used by the task queue")
	flags.String("log-format", "", "Log output format: text or json")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewInsertCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewTopCmd())
	cmd.AddCommand(NewDomainCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewDedupeCmd())
	cmd.AddCommand(NewRequeueCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
