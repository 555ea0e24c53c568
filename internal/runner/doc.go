// Package runner drives one check-and-notify run: it fetches every source,
// keeps the certificates at or below the warning threshold, builds the report
// and delivers the same report to every configured Slack channel, then
// optionally pushes run metrics.
//
// Sources are fetched concurrently through an errgroup.Group bounded by the
// configured concurrency. Each goroutine writes only its own result slot and
// always returns nil, so one failing source cannot cancel the rest.
package runner
