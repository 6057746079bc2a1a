// Package consumer executes notification requests read from a Kafka topic.
//
// Each message value is a JSON Request. Messages are committed after they are
// handled whatever the outcome: notification failures are permanent, and a
// message that cannot be decoded will never decode.
package consumer
