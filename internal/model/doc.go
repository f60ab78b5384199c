// Package model defines the data structures shared by the crawler, the
// store, the queue and the reports.
//
// This package contains the following main types:
//   - DomainRecord: the persisted outcome for one domain
//   - DomainInfo: the transient result of crawling one domain
//   - Task: the queue payload asking a worker to crawl a domain
//   - Status: the lifecycle state of a domain
//
// The types are serializable to JSON for reports and the broker.
package model
