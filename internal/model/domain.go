package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a domain in the store.
// A domain with no record at all is unseen.
type Status string

const (
	// StatusUnseen is reported for domains that have no record.
	// It is never persisted.
	StatusUnseen Status = "unseen"

	// StatusInFlight marks a domain claimed by a worker that has not
	// finished processing it yet.
	StatusInFlight Status = "in_flight"

	// StatusSuccess marks a domain whose page was fetched and parsed.
	StatusSuccess Status = "success"

	// StatusFailure marks a domain that could not be crawled on any scheme,
	// or that did not serve HTML.
	StatusFailure Status = "failure"
)

// String returns the persisted representation of the status.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status is a final crawl outcome.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// ParseStatus converts a stored status string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusUnseen:
		return StatusUnseen, nil
	case StatusInFlight:
		return StatusInFlight, nil
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusFailure:
		return StatusFailure, nil
	default:
		return "", fmt.Errorf("unknown domain status %q", s)
	}
}

// DomainRecord is the persisted outcome for one domain.
// Optional fields are nil when absent.
type DomainRecord struct {
	// Name is the lowercase domain name. It is the unique key.
	Name string `json:"name"`

	// Status is the lifecycle state of the record.
	Status Status `json:"status"`

	// Headers holds the response headers. Only set on success.
	Headers map[string]string `json:"headers,omitempty"`

	// ElapsedMS is the time until response headers arrived, in
	// milliseconds. Only set on success.
	ElapsedMS *int64 `json:"elapsed_ms,omitempty"`

	// IP is the address the domain resolved to, if resolution succeeded.
	IP *string `json:"ip,omitempty"`

	// ASN is the autonomous system owning IP.
	ASN *uint32 `json:"asn,omitempty"`

	// Country is the English country name for IP.
	Country *string `json:"country,omitempty"`

	// Attempts counts how many times the domain was claimed.
	Attempts int `json:"attempts"`

	// Date is the time the record was last written.
	Date time.Time `json:"date"`
}

// Success reports whether the record is a successful crawl.
func (r *DomainRecord) Success() bool {
	return r.Status == StatusSuccess
}

// DomainInfo is produced while a domain is processed. It only lives for the
// duration of one crawl and is turned into a DomainRecord on success.
type DomainInfo struct {
	Name          string
	ElapsedMS     int64
	Headers       map[string]string
	LinkedDomains []string
	IP            *string
	ASN           *uint32
	Country       *string
}

// SuccessRecord builds the record persisted for a successful crawl.
func (i *DomainInfo) SuccessRecord(now time.Time) *DomainRecord {
	elapsed := i.ElapsedMS
	return &DomainRecord{
		Name:      i.Name,
		Status:    StatusSuccess,
		Headers:   i.Headers,
		ElapsedMS: &elapsed,
		IP:        i.IP,
		ASN:       i.ASN,
		Country:   i.Country,
		Date:      now,
	}
}

// FailureRecord builds the record persisted when a domain is unreachable.
func FailureRecord(name string, now time.Time) *DomainRecord {
	return &DomainRecord{
		Name:   name,
		Status: StatusFailure,
		Date:   now,
	}
}

// NormalizeName lowercases a domain name and strips surrounding whitespace
// and a trailing root dot.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".")
}
