// Package compose turns an event context and a notification config into a
// Slack message.
//
// The summary line is always produced. Custom and backlog-item templates are
// rendered only when configured; a template that fails to render yields the
// error text in place of the message rather than failing the notification.
// Stream and backlog lookups are only made when a template needs them.
package compose
