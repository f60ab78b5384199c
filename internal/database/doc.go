// Package database provides the SQLite domain store of domainmap.
//
// The DomainDB keeps exactly one row per domain name. Workers claim a
// domain with an atomic insert-if-absent before crawling it, so two
// workers racing on the same name, in one process or several sharing the
// file, never both crawl it. A claim then ends as a success or failure
// record.
//
// The store uses modernc.org/sqlite, a CGO-free SQLite, in WAL mode with
// a busy timeout so several crawl processes on one host can share it.
package database
