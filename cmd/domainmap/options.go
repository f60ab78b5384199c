package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/database"
	applog "github.com/nao1215/domainmap/internal/log"
	"github.com/nao1215/domainmap/internal/queue"
	"github.com/nao1215/domainmap/internal/report"
)

// errRedisRequired is returned by commands that only work on the shared queue.
var errRedisRequired = errors.New(`this command needs the redis broker (set "broker: redis")`)

// loadConfig builds the configuration of a command: defaults, then the
// configuration file, then the flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// A missing file is only an error when the user named it
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if err := config.LoadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set into cfg. Flags that a command
// does not define are skipped.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	strs := map[string]*string{
		"db-dir":       &cfg.DBDir,
		"redis-url":    &cfg.RedisURL,
		"queue-name":   &cfg.QueueName,
		"log-format":   &cfg.LogFormat,
		"broker":       &cfg.Broker,
		"asn-db":       &cfg.ASNDatabase,
		"geoip-db":     &cfg.GeoIPDatabase,
		"proxy":        &cfg.Proxy,
		"user-agent":   &cfg.UserAgent,
		"metrics-addr": &cfg.MetricsAddr,
	}
	for name, dst := range strs {
		if !changed(flags, name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	ints := map[string]*int{
		"workers":      &cfg.Workers,
		"max-attempts": &cfg.MaxAttempts,
	}
	for name, dst := range ints {
		if !changed(flags, name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durations := map[string]*time.Duration{
		"task-timeout":    &cfg.TaskTimeout,
		"connect-timeout": &cfg.ConnectTimeout,
		"read-timeout":    &cfg.ReadTimeout,
	}
	for name, dst := range durations {
		if !changed(flags, name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	bools := map[string]*bool{
		"verbose":  &cfg.Verbose,
		"json":     &cfg.JSONReport,
		"markdown": &cfg.MarkdownReport,
	}
	for name, dst := range bools {
		if flags.Lookup(name) == nil {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	return nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	return flags.Lookup(name) != nil && flags.Changed(name)
}

// newLogger creates the command logger on stderr. base is the level used
// without --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config, base slog.Level) *slog.Logger {
	level := applog.Level(cfg.Verbose, base)
	return applog.NewLogger(cmd.ErrOrStderr(), level, cfg.LogFormat == config.LogFormatJSON)
}

// openStore opens the domain database. Only migrate and crawl create it.
func openStore(cfg *config.Config, create bool) (*database.DomainDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = create
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openRedisQueue connects to the shared task queue.
func openRedisQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*queue.RedisQueue, error) {
	if cfg.Broker != config.BrokerRedis {
		return nil, errRedisRequired
	}

	client, err := queue.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return queue.NewRedisQueue(client, queue.RedisOptions{
		Name:   cfg.QueueName,
		Logger: logger,
	}), nil
}

// addReportFlags adds the output format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
}

// reportFormat returns the report format selected by the flags.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// closeQuietly closes c, logging a failure.
func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("failed to close "+name, "error", err)
	}
}
