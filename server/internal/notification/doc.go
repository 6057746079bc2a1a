// Package notification executes a configured Slack notification for one
// event: compose the message, deliver it, and on any failure publish a
// system notification and return a *PermanentError.
//
// Failures are never retried. Each execution is recorded in the delivery
// history as it moves through composing, delivering and done (or failed).
package notification
