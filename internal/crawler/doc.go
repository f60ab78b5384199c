// Package crawler processes one domain at a time.
//
// Crawler.Crawl is the unit of work run by every worker:
//
//  1. claim the domain in the store, skipping it when another worker owns
//     it or it was already crawled
//  2. fetch its front page over http, then https
//  3. extract the hosts of every <a href> link
//  4. resolve its address, autonomous system and country
//  5. submit every linked domain the store has not seen yet
//  6. store the outcome
//
// A domain that cannot be fetched is stored as a failure and is not an
// error. Errors returned by Crawl are faults of the store, the queue or the
// deadline, and the claim is released so that a retry can pick the domain
// up again.
//
// # Usage
//
//	c := crawler.New(db, q, fetcher, resolver, crawler.WithLogger(logger))
//	err := c.Crawl(ctx, "example.com")
package crawler
