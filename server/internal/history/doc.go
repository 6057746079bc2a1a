// Package history keeps recent notification deliveries in memory. It provides
// a thread-safe record store with TTL eviction that backs the deliveries API
// and the WebSocket feed.
package history
