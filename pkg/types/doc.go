// Package types defines the domain types shared by the notification pipeline,
// the HTTP API and the Kafka ingress: events, event definitions, job triggers,
// streams and backlog message summaries.
//
// JSON tags use snake_case; the same encoding is what templates see when an
// event or a backlog message is exposed in the template data model.
package types
