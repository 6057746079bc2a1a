// Package config loads the service configuration from a YAML file.
//
// The `server:` section configures the runtime:
//   - HTTPPort            : REST API, /metrics and WebSocket port (default 8080)
//   - NodeID              : node reported in system notifications (default hostname)
//   - Log                 : level (debug|info|warn|error) and format (json|text)
//   - Auth                : "apikey" or "none"; key read from KeyEnv
//   - Storage             : sqlite (default) or postgres, plus DSN
//   - SystemNotifications : storage (default) or redis publish-if-first backend
//   - Delivery.Timeout    : webhook request timeout (default 30s)
//   - History.TTL         : delivery record retention (default 1h)
//   - Feed.Interval       : WebSocket push interval (default 5s)
//   - Kafka               : optional ingress topic
//
// The `notifications:` section maps a notification name to its Slack settings.
//
// Load(path) applies defaults, unmarshals, resolves *_env fields from the
// environment and validates. Watch reloads the file on change; Holder lets
// readers see the latest valid config.
package config
