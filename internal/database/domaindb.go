package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/domainmap/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "domains.db"

// busyTimeoutMillis is how long a connection waits for another process
// holding the write lock before failing with SQLITE_BUSY.
const busyTimeoutMillis = 5000

// ErrNotFound is returned when a domain has no record.
var ErrNotFound = errors.New("domain not found")

// DomainDB stores one record per crawled domain in SQLite.
// Several crawl processes on the same host may share the file.
type DomainDB struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Options configures DomainDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// crawl workers' writes.
	EnableWAL bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the domain database in dbDir and provisions the schema.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DomainDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run \"domainmap migrate\" first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	// The busy timeout is part of the DSN so every pooled connection gets it.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := fmt.Sprintf("file:%s?mode=%s&_pragma=busy_timeout(%d)", dbPath, mode, busyTimeoutMillis)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ddb := &DomainDB{
		db:     db,
		dbPath: dbPath,
		now:    opts.Now,
	}
	if ddb.now == nil {
		ddb.now = time.Now
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ddb.Provision(context.Background()); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, err
	}

	return ddb, nil
}

// Path returns the database file path.
func (d *DomainDB) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *DomainDB) Close() error {
	return d.db.Close()
}

// Provision creates the schema if it doesn't exist. It is idempotent.
func (d *DomainDB) Provision(ctx context.Context) error {
	schema := `
	-- One row per domain; name is the unique key
	CREATE TABLE IF NOT EXISTS domains (
		name TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		headers TEXT,
		elapsed_ms INTEGER,
		ip TEXT,
		asn INTEGER,
		country TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		claimed_at INTEGER,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_domains_status ON domains(status);
	CREATE INDEX IF NOT EXISTS idx_domains_asn ON domains(asn);
	CREATE INDEX IF NOT EXISTS idx_domains_country ON domains(country);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// ClaimOutcome is the result of trying to claim a domain.
type ClaimOutcome int

const (
	// Claimed means the caller now owns the domain and must record an outcome.
	Claimed ClaimOutcome = iota
	// AlreadyDone means the domain has a success or failure record.
	AlreadyDone
	// Busy means another worker holds a live claim on the domain.
	Busy
)

// String returns a readable name for the outcome.
func (c ClaimOutcome) String() string {
	switch c {
	case Claimed:
		return "claimed"
	case AlreadyDone:
		return "already done"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Claim atomically inserts an in-flight record for name if none exists.
// An in-flight record whose claim is older than ttl belongs to a worker
// that died; it is taken over and counts as Claimed.
func (d *DomainDB) Claim(ctx context.Context, name string, ttl time.Duration) (ClaimOutcome, error) {
	now := d.now().UTC()
	staleBefore := now.Add(-ttl).UnixMilli()

	query := `
	INSERT INTO domains (name, status, attempts, claimed_at, date)
	VALUES (?, ?, 1, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		attempts = domains.attempts + 1,
		claimed_at = excluded.claimed_at,
		date = excluded.date
	WHERE domains.status = ? AND domains.claimed_at < ?
	RETURNING attempts
	`

	var attempts int
	err := d.db.QueryRowContext(ctx, query,
		name, model.StatusInFlight.String(), now.UnixMilli(), formatTimestamp(now),
		model.StatusInFlight.String(), staleBefore,
	).Scan(&attempts)
	if err == nil {
		return Claimed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to claim %s: %w", name, err)
	}

	// Not claimed: report why
	var status string
	err = d.db.QueryRowContext(ctx, `SELECT status FROM domains WHERE name = ?`, name).Scan(&status)
	if err != nil {
		return 0, fmt.Errorf("failed to read status of %s: %w", name, err)
	}
	if model.Status(status).Terminal() {
		return AlreadyDone, nil
	}
	return Busy, nil
}

// Release gives up an in-flight claim so a retry can claim the domain
// again immediately. Terminal records are left untouched.
func (d *DomainDB) Release(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE domains SET claimed_at = 0 WHERE name = ? AND status = ?`,
		name, model.StatusInFlight.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", name, err)
	}
	return nil
}

// RecordSuccess stores the outcome of a successful crawl.
func (d *DomainDB) RecordSuccess(ctx context.Context, record *model.DomainRecord) error {
	headersJSON, err := json.Marshal(record.Headers)
	if err != nil {
		return fmt.Errorf("failed to serialize headers: %w", err)
	}

	var asn sql.NullInt64
	if record.ASN != nil {
		asn = sql.NullInt64{Int64: int64(*record.ASN), Valid: true}
	}

	return d.record(ctx, record.Name, model.StatusSuccess, record.Date,
		string(headersJSON), nullInt(record.ElapsedMS), nullString(record.IP), asn, nullString(record.Country))
}

// RecordFailure stores that name could not be crawled.
func (d *DomainDB) RecordFailure(ctx context.Context, name string, date time.Time) error {
	return d.record(ctx, name, model.StatusFailure, date,
		nil, sql.NullInt64{}, sql.NullString{}, sql.NullInt64{}, sql.NullString{})
}

// record writes a terminal record, creating the row when there was no claim.
func (d *DomainDB) record(ctx context.Context, name string, status model.Status, date time.Time,
	headers any, elapsed sql.NullInt64, ip sql.NullString, asn sql.NullInt64, country sql.NullString,
) error {
	if date.IsZero() {
		date = d.now()
	}

	query := `
	INSERT INTO domains (name, status, headers, elapsed_ms, ip, asn, country, attempts, claimed_at, date)
	VALUES (?, ?, ?, ?, ?, ?, ?, 1, NULL, ?)
	ON CONFLICT(name) DO UPDATE SET
		status = excluded.status,
		headers = excluded.headers,
		elapsed_ms = excluded.elapsed_ms,
		ip = excluded.ip,
		asn = excluded.asn,
		country = excluded.country,
		claimed_at = NULL,
		date = excluded.date
	`

	_, err := d.db.ExecContext(ctx, query,
		name, status.String(), headers, elapsed, ip, asn, country, formatTimestamp(date.UTC()))
	if err != nil {
		return fmt.Errorf("failed to record %s for %s: %w", status, name, err)
	}
	return nil
}

// Exists reports whether name has any record, including an in-flight claim.
func (d *DomainDB) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM domains WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", name, err)
	}
	return true, nil
}

// Find returns the record for name, or ErrNotFound.
func (d *DomainDB) Find(ctx context.Context, name string) (*model.DomainRecord, error) {
	query := `
	SELECT name, status, headers, elapsed_ms, ip, asn, country, attempts, date
	FROM domains WHERE name = ?
	`

	var (
		record  model.DomainRecord
		status  string
		headers sql.NullString
		elapsed sql.NullInt64
		ip      sql.NullString
		asn     sql.NullInt64
		country sql.NullString
		date    string
	)
	err := d.db.QueryRowContext(ctx, query, name).Scan(
		&record.Name, &status, &headers, &elapsed, &ip, &asn, &country, &record.Attempts, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", name, err)
	}

	record.Status, err = model.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if headers.Valid && headers.String != "" && headers.String != "null" {
		if err := json.Unmarshal([]byte(headers.String), &record.Headers); err != nil {
			return nil, fmt.Errorf("failed to deserialize headers of %s: %w", name, err)
		}
	}
	if elapsed.Valid {
		v := elapsed.Int64
		record.ElapsedMS = &v
	}
	if ip.Valid {
		v := ip.String
		record.IP = &v
	}
	if asn.Valid {
		v := uint32(asn.Int64) //nolint:gosec // stored from a uint32
		record.ASN = &v
	}
	if country.Valid {
		v := country.String
		record.Country = &v
	}
	record.Date = parseTimestamp(date)

	return &record, nil
}

// CountWhere returns the number of records with the given status.
func (d *DomainDB) CountWhere(ctx context.Context, status model.Status) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM domains WHERE status = ?`, status.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", status, err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
	"2006-01-02 15:04:05",     // SQLite default datetime format
}

// formatTimestamp formats t the way it is stored.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
