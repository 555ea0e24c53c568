// Package config loads the job configuration file (config.yml).
//
// Top-level types:
//   - Config — Slack delivery settings, AWS accounts, remote endpoints,
//     expiry thresholds, network timeout, fetch concurrency, metrics push
//   - AWSAccount — name plus an access key pair, given literally or resolved
//     from environment variables (aws_access_key_id_env / aws_secret_access_key_env)
//   - RemoteCert — display name and URL of a TLS endpoint
//   - MetricsConfig — optional Prometheus Pushgateway target
//
// Load(path) reads the file, applies defaults (10s timeout, concurrency 4,
// 100 IAM items per page, medium threshold = warning threshold, low threshold
// = warning threshold / 3), decodes it as TOML when the extension is .toml and
// as YAML otherwise, then validates required fields. Every failure wraps
// ErrConfig; the job must not contact any source when Load fails.
package config
