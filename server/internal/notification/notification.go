package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/obsidianstack/slacknotify/pkg/types"
	"github.com/obsidianstack/slacknotify/server/internal/compose"
	"github.com/obsidianstack/slacknotify/server/internal/config"
	"github.com/obsidianstack/slacknotify/server/internal/history"
	"github.com/obsidianstack/slacknotify/server/internal/metrics"
	"github.com/obsidianstack/slacknotify/server/internal/slack"
)

// FailedPrefix starts the message of every PermanentError.
const FailedPrefix = "Slack notification is triggered, but sending failed. "

// Sender composes and delivers one message.
type Sender interface {
	Compose(ctx context.Context, ectx *types.EventContext, cfg config.Notification) (*slack.Message, error)
	Deliver(ctx context.Context, cfg config.Notification, msg *slack.Message) error
}

// FailureReporter publishes an operational notice about a failed execution.
type FailureReporter interface {
	ReportFailure(ctx context.Context, detail string) error
}

// PermanentError is returned for every failed execution. Callers must not
// retry it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return FailedPrefix + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent always reports true.
func (e *PermanentError) Permanent() bool { return true }

// SlackSender is the Sender backed by a Composer and a webhook Client.
type SlackSender struct {
	composer *compose.Composer
	client   *slack.Client
}

// NewSlackSender returns a SlackSender.
func NewSlackSender(composer *compose.Composer, client *slack.Client) *SlackSender {
	return &SlackSender{composer: composer, client: client}
}

// Compose implements Sender.
func (s *SlackSender) Compose(ctx context.Context, ectx *types.EventContext, cfg config.Notification) (*slack.Message, error) {
	return s.composer.Compose(ctx, ectx, cfg)
}

// Deliver implements Sender.
func (s *SlackSender) Deliver(ctx context.Context, cfg config.Notification, msg *slack.Message) error {
	return s.client.Deliver(ctx, cfg.WebhookURL, cfg.Proxy, msg)
}

// Notifier runs notifications. It is safe for concurrent use when its
// collaborators are.
type Notifier struct {
	sender   Sender
	reporter FailureReporter
	history  *history.Store
	metrics  *metrics.Registry
	log      *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHistory records every execution in h.
func WithHistory(h *history.Store) Option {
	return func(n *Notifier) { n.history = h }
}

// WithMetrics counts outcomes in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// NewNotifier returns a Notifier. reporter may be nil, in which case failures
// are only logged.
func NewNotifier(sender Sender, reporter FailureReporter, opts ...Option) *Notifier {
	n := &Notifier{sender: sender, reporter: reporter, log: slog.Default()}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Execute runs the notification name for ectx. The only error it returns
// is *PermanentError.
func (n *Notifier) Execute(ctx context.Context, name string, ectx *types.EventContext, cfg config.Notification) error {
	_, err := n.Run(ctx, name, ectx, cfg)
	return err
}

// Run is Execute that also returns the delivery record.
func (n *Notifier) Run(ctx context.Context, name string, ectx *types.EventContext, cfg config.Notification) (history.Record, error) {
	if ectx == nil {
		ectx = &types.EventContext{}
	}
	// A started notification runs to success or failure; only the client
	// timeout bounds it.
	ctx = context.WithoutCancel(ctx)
	rec := n.begin(name, ectx.Event.ID)

	msg, err := n.sender.Compose(ctx, ectx, cfg)
	if err != nil {
		return n.fail(ctx, rec, name, err)
	}

	rec = n.transition(rec, history.StateDelivering, nil)
	start := time.Now()
	err = n.sender.Deliver(ctx, cfg, msg)
	n.metrics.ObserveDelivery(time.Since(start))
	if err != nil {
		return n.fail(ctx, rec, name, err)
	}

	n.metrics.Notification(metrics.OutcomeSent)
	n.log.Info("notification: delivered", "notification", name, "event", ectx.Event.ID)
	return n.transition(rec, history.StateDone, nil), nil
}

func (n *Notifier) fail(ctx context.Context, rec history.Record, name string, err error) (history.Record, error) {
	n.metrics.Notification(metrics.OutcomeFailed)
	if kind := errorKind(err); kind != "" {
		n.metrics.DeliveryError(kind)
	}
	n.log.Error("notification: failed", "notification", name, "event", rec.EventID, "err", err)

	if n.reporter != nil {
		if rerr := n.reporter.ReportFailure(ctx, Detail(err)); rerr != nil {
			n.log.Error("notification: report failure", "notification", name, "err", rerr)
		}
	}
	return n.transition(rec, history.StateFailed, err), &PermanentError{Err: err}
}

// Detail describes err for a system notification: its message followed by
// its direct cause in parentheses, if it has one.
func Detail(err error) string {
	detail := err.Error()
	if cause := errors.Unwrap(err); cause != nil {
		detail += " (" + cause.Error() + ")"
	}
	return detail
}

func errorKind(err error) string {
	var de *slack.DeliveryError
	if errors.As(err, &de) {
		return string(de.Kind)
	}
	var ce *slack.ConfigError
	if errors.As(err, &ce) {
		return "config"
	}
	return ""
}

func (n *Notifier) begin(name, eventID string) history.Record {
	if n.history != nil {
		return n.history.Begin(name, eventID)
	}
	now := time.Now()
	return history.Record{
		Notification: name,
		EventID:      eventID,
		State:        history.StateComposing,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

func (n *Notifier) transition(rec history.Record, state history.State, err error) history.Record {
	if n.history != nil {
		if updated, ok := n.history.Transition(rec.ID, state, err); ok {
			return updated
		}
	}
	now := time.Now()
	rec.State = state
	rec.UpdatedAt = now
	if err != nil {
		rec.Error = err.Error()
	}
	if state.Terminal() {
		rec.FinishedAt = &now
	}
	return rec
}
