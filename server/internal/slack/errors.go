package slack

import "fmt"

// ConfigError reports an unusable webhook or proxy setting.
type ConfigError struct {
	Field  string // "webhook_url" or "proxy"
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("slack: invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("slack: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrorKind classifies a DeliveryError.
type ErrorKind string

const (
	// KindTransport covers connection failures, I/O errors and timeouts.
	KindTransport ErrorKind = "transport"
	// KindUnexpectedStatus means Slack answered with a status other than 200.
	KindUnexpectedStatus ErrorKind = "unexpected_status"
)

// DeliveryError reports a failed webhook POST.
type DeliveryError struct {
	Kind       ErrorKind
	StatusCode int // set for KindUnexpectedStatus
	Err        error
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case KindUnexpectedStatus:
		return fmt.Sprintf("slack: unexpected HTTP status %d", e.StatusCode)
	default:
		return fmt.Sprintf("slack: request failed: %v", e.Err)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }
