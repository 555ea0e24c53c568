// Package risk classifies certificates by remaining lifetime.
//
// Classify maps a days-remaining value onto Good, Warning or Danger using the
// medium and low thresholds. Imminent is the separate filter that decides
// which certificates are reported at all (days remaining <= the warning
// threshold); Classify only decides how reported certificates are grouped.
//
// All functions are pure and safe for concurrent use.
package risk
