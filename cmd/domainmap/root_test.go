package main

import (
	"testing"

	"github.com/nao1215/domainmap/internal/report"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "domainmap" {
			t.Errorf("expected use 'domainmap', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has global flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"verbose", "config", "db-dir", "redis-url", "queue-name", "log-format"} {
			if cmd.PersistentFlags().Lookup(name) == nil {
				t.Errorf("expected persistent flag %q", name)
			}
		}
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := []string{"crawl", "insert", "stats", "top", "domain", "migrate", "dedupe", "requeue", "init", "version"}
		for _, name := range want {
			sub, _, err := cmd.Find([]string{name})
			if err != nil || sub == cmd {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("top has rankings", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"as", "countries"} {
			sub, _, err := cmd.Find([]string{"top", name})
			if err != nil || sub.Name() != name {
				t.Errorf("expected top %s subcommand", name)
			}
		}
	})
}

func TestNormalizeSeeds(t *testing.T) {
	t.Parallel()

	t.Run("normalizes names", func(t *testing.T) {
		t.Parallel()
		got, err := normalizeSeeds([]string{"Example.COM", "bücher.example", "127.0.0.1:8080"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"example.com", "xn--bcher-kva.example", "127.0.0.1:8080"}
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("expected %q, got %q", want[i], got[i])
			}
		}
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		t.Parallel()
		if _, err := normalizeSeeds([]string{"example.com", "bad host"}); err == nil {
			t.Error("expected error for a name with a space")
		}
	})
}

func TestReportFormat(t *testing.T) {
	t.Parallel()

	cmd := NewStatsCmd()
	cmd.Flags().AddFlagSet(NewRootCmd().PersistentFlags())
	if err := cmd.ParseFlags([]string{"--json", "--db-dir", t.TempDir()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reportFormat(cfg); got != report.FormatJSON {
		t.Errorf("expected %q, got %q", report.FormatJSON, got)
	}
}
