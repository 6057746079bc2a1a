// Package metrics keeps the service's delivery counters and renders them in
// the Prometheus text exposition format.
package metrics
