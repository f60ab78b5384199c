// Package report renders crawl statistics and stored domains.
//
// Three formats implement Writer:
//   - TextWriter: aligned, coloured text for terminals
//   - JSONWriter: structured output for scripts
//   - MarkdownWriter: tables for sharing, with a pie chart for top-N reports
//
// The report types (Stats, Top) are built by the commands from store and
// queue counts, so writers never talk to the database themselves.
package report
