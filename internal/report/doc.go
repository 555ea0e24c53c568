// Package report turns classified certificate records into a deterministic,
// transport-agnostic Report.
//
// Build groups records by severity (Danger, then Warning, then Good), orders
// each group soonest-to-expire first with ties kept in input order, and
// renders one line per record. When nothing is about to expire the Report
// carries only an all-clear Summary naming the days left on the single
// soonest-expiring certificate.
package report
