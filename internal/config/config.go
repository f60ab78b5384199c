package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "domainmap"

	// DefaultWorkers is the number of concurrent crawl workers per process.
	// Workers spend most of their time waiting on the network, so this is
	// well above the number of CPUs.
	DefaultWorkers = 16

	// DefaultBroker selects the Redis task queue.
	DefaultBroker = BrokerRedis

	// DefaultRedisURL points at a local Redis instance, database 0.
	DefaultRedisURL = "redis://127.0.0.1:6379/0"

	// DefaultQueueName is the key prefix of every Redis key the queue uses.
	DefaultQueueName = "domainmap"

	// DefaultConnectTimeout bounds TCP connect and TLS handshake of one fetch attempt.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds waiting for response headers and reading
	// the body of one fetch attempt.
	DefaultReadTimeout = 15 * time.Second

	// DefaultMaxRedirects bounds the requests of one attempt, redirects included.
	DefaultMaxRedirects = 10

	// DefaultMaxBodySize limits how much of a page is read for link extraction.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "domainmap/1.0 (+https://github.com/nao1215/domainmap)"

	// DefaultTaskTimeout is the deadline for crawling a single domain,
	// covering fetch, enrichment, fanout and the final write.
	DefaultTaskTimeout = 2 * time.Minute

	// DefaultClaimTTL is the age after which an in-flight claim is treated
	// as abandoned by a crashed worker and may be taken over.
	DefaultClaimTTL = 10 * time.Minute

	// DefaultMaxAttempts is the number of deliveries a task gets before it
	// is moved to the dead-letter list.
	DefaultMaxAttempts = 5

	// DefaultRetryBackoff is the delay before the first retry. It doubles
	// on every following attempt.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultMaxRetryBackoff caps the retry delay.
	DefaultMaxRetryBackoff = 5 * time.Minute

	// DefaultLogFormat is the slog handler used for log output.
	DefaultLogFormat = LogFormatText

	// DefaultTopCount is the number of rows printed by the top reports.
	DefaultTopCount = 15
)

// Supported task brokers.
const (
	// BrokerRedis shares the task queue between processes through Redis.
	BrokerRedis = "redis"
	// BrokerMemory keeps the task queue inside a single crawl process.
	BrokerMemory = "memory"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultSchemes returns the URL schemes tried for every domain, in order.
func DefaultSchemes() []string {
	return []string{"http", "https"}
}

// Config holds all configuration options for domainmap.
// It is populated from defaults, then the YAML file, then CLI flags, and
// passed through the application rather than kept in global state.
type Config struct {
	// Workers is the number of concurrent crawl workers.
	Workers int `yaml:"workers"`

	// Broker selects the task queue implementation: "redis" or "memory".
	Broker string `yaml:"broker"`

	// RedisURL is the Redis connection URL, e.g. redis://:password@host:6379/0.
	RedisURL string `yaml:"redis_url"`

	// QueueName prefixes every Redis key used by the queue, so several
	// crawls can share one Redis instance.
	QueueName string `yaml:"queue_name"`

	// DBDir is the directory holding the SQLite domain database.
	// Defaults to the XDG data directory (~/.local/share/domainmap on Linux).
	DBDir string `yaml:"db_dir"`

	// ASNDatabase is the path of the IP-prefix to ASN routing table
	// (ipasn.dat format). Empty disables ASN enrichment.
	ASNDatabase string `yaml:"asn_database"`

	// GeoIPDatabase is the path of a GeoLite2-Country (or compatible)
	// MaxMind database. Empty disables country enrichment.
	GeoIPDatabase string `yaml:"geoip_database"`

	// Schemes are the URL schemes tried for each domain, in order.
	Schemes []string `yaml:"schemes"`

	// ConnectTimeout bounds connection setup of one fetch attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReadTimeout bounds the response of one fetch attempt.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// MaxRedirects is the number of redirects followed per fetch attempt.
	MaxRedirects int `yaml:"max_redirects"`

	// MaxBodySize is the maximum response body size in bytes to read.
	// Larger bodies are truncated. Set to 0 to use the default (5MB).
	MaxBodySize int64 `yaml:"max_body_size"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `yaml:"user_agent"`

	// Proxy is an optional SOCKS5 proxy address ("host:port") for fetches.
	Proxy string `yaml:"proxy"`

	// TaskTimeout is the deadline for crawling one domain.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// ClaimTTL is the age after which an in-flight claim may be taken over.
	ClaimTTL time.Duration `yaml:"claim_ttl"`

	// MaxAttempts is the number of deliveries a task gets before it is
	// dead-lettered.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryBackoff is the delay before the first retry of a failed task.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// MaxRetryBackoff caps the exponential retry delay.
	MaxRetryBackoff time.Duration `yaml:"max_retry_backoff"`

	// MetricsAddr is the listen address of the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogFormat selects "text" or "json" log output.
	LogFormat string `yaml:"log_format"`

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool `yaml:"-"`

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string `yaml:"-"`

	// JSONReport enables JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool `yaml:"-"`

	// MarkdownReport enables Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool `yaml:"-"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:         DefaultWorkers,
		Broker:          DefaultBroker,
		RedisURL:        DefaultRedisURL,
		QueueName:       DefaultQueueName,
		DBDir:           XDGDataDir(),
		Schemes:         DefaultSchemes(),
		ConnectTimeout:  DefaultConnectTimeout,
		ReadTimeout:     DefaultReadTimeout,
		MaxRedirects:    DefaultMaxRedirects,
		MaxBodySize:     DefaultMaxBodySize,
		UserAgent:       DefaultUserAgent,
		TaskTimeout:     DefaultTaskTimeout,
		ClaimTTL:        DefaultClaimTTL,
		MaxAttempts:     DefaultMaxAttempts,
		RetryBackoff:    DefaultRetryBackoff,
		MaxRetryBackoff: DefaultMaxRetryBackoff,
		LogFormat:       DefaultLogFormat,
	}
}

// XDGDataDir returns the XDG data directory for domainmap.
// On Linux: ~/.local/share/domainmap
// On macOS: ~/Library/Application Support/domainmap
// On Windows: %LOCALAPPDATA%\domainmap
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for domainmap.
// On Linux: ~/.config/domainmap
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DBPath returns the SQLite database file path inside DBDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DBDir, "domains.db")
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors in errors.go.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	switch c.Broker {
	case BrokerRedis:
		if c.RedisURL == "" {
			return ErrNoRedisURL
		}
	case BrokerMemory:
	default:
		return ErrUnknownBroker
	}

	if len(c.Schemes) == 0 {
		return ErrNoSchemes
	}
	for _, s := range c.Schemes {
		if !slices.Contains(DefaultSchemes(), s) {
			return ErrUnknownScheme
		}
	}

	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 || c.TaskTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ClaimTTL <= 0 {
		return ErrInvalidClaimTTL
	}

	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	if c.RetryBackoff <= 0 || c.MaxRetryBackoff < c.RetryBackoff {
		return ErrInvalidRetryBackoff
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
