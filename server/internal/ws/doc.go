// Package ws streams the delivery history to WebSocket clients.
//
// A Hub sends the recent delivery records to a client as soon as it connects
// and then to every connected client once per feed interval. Each frame is a
// JSON envelope:
//
//	{"event": "deliveries", "data": {"deliveries": [...], "generated_at": "..."}}
//
// data has the schema of GET /api/v1/deliveries. The server mounts the hub at
// /ws/deliveries. Origins are not checked; restrict them at the reverse proxy.
package ws
