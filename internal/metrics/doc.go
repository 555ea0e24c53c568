// Package metrics exports the outcome of a run to a Prometheus Pushgateway.
//
// Families builds gauge families from the run's records; Pusher encodes them
// in the Prometheus text exposition format and replaces the job's group on
// the gateway with a single PUT. Pushing is optional and a failed push never
// fails the run.
package metrics
