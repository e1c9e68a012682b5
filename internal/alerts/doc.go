// Package alerts raises an alert when a data type's current value enters one
// of the configured severity buckets and resolves it when the value leaves.
// Notifications go to Slack or generic HTTP webhooks and, when configured,
// to Mailgun email recipients.
package alerts
