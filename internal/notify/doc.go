// Package notify delivers reports to Slack through an incoming webhook.
// Each report entry becomes one attachment colored by severity; an all-clear
// report is sent as plain text.
package notify
