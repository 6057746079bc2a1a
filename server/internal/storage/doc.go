// Package storage is the SQL store behind stream and backlog lookups and the
// publish-if-first system notifications.
//
// Two drivers are supported: sqlite (modernc.org/sqlite, pure Go) and
// postgres (lib/pq). Queries are written with '?' placeholders and rebound
// to $n for postgres. Timestamps are stored as unix milliseconds.
package storage
