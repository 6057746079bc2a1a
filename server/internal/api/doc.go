// Package api implements the HTTP REST API for slacknotify.
//
// New(deps) returns an http.Handler that serves:
//
//	GET    /api/v1/health                        node, storage and counters
//	GET    /api/v1/notifications                 configured notifications (no secrets)
//	POST   /api/v1/notifications/{name}/execute  run a notification for an event context
//	GET    /api/v1/deliveries                    recent delivery records, newest first
//	GET    /api/v1/deliveries/{id}               single delivery record
//	POST   /api/v1/streams                       create or update a stream
//	POST   /api/v1/messages                      append a message to the backlog store
//	GET    /api/v1/system/notifications          open system notifications
//	DELETE /api/v1/system/notifications/{type}   dismiss a system notification
//	GET    /metrics                              Prometheus text exposition
//
// Every endpoint answers with Content-Type: application/json (except
// /metrics) and returns 405 for methods it does not serve. Errors are
// {"error": "..."} bodies.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
