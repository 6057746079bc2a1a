// Package slack builds and delivers Slack Incoming Webhook messages.
//
// A Message is encoded into the webhook JSON body by Message.JSON and posted
// by Client.Deliver. Deliver validates the webhook and proxy URLs before any
// network activity, then classifies the outcome:
//
//   - malformed webhook or proxy URL: *ConfigError
//   - HTTP status other than 200: *DeliveryError with KindUnexpectedStatus
//   - connection, I/O and timeout faults: *DeliveryError with KindTransport
//   - HTTP 200: success. A body other than "ok" is logged as a warning only.
//
// Every Deliver call builds its own transport; nothing is pooled between
// calls.
package slack
