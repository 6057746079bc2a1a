package compose

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/obsidianstack/slacknotify/pkg/types"
	"github.com/obsidianstack/slacknotify/server/internal/config"
	"github.com/obsidianstack/slacknotify/server/internal/deeplink"
	"github.com/obsidianstack/slacknotify/server/internal/metrics"
	"github.com/obsidianstack/slacknotify/server/internal/model"
	"github.com/obsidianstack/slacknotify/server/internal/render"
	"github.com/obsidianstack/slacknotify/server/internal/slack"
)

// UnnamedTitle is the title used when the event has no definition.
const UnnamedTitle = "Unnamed"

// Template names used in logs and metrics.
const (
	TemplateCustomMessage = "custom_message"
	TemplateBacklogItem   = "backlog_item_message"
)

// StreamLookup resolves stream ids to streams. Unknown ids are skipped.
type StreamLookup interface {
	StreamsByIDs(ctx context.Context, ids []string) ([]types.Stream, error)
}

// BacklogLookup returns up to limit messages that matched the event, oldest
// first.
type BacklogLookup interface {
	Backlog(ctx context.Context, ectx *types.EventContext, limit int) ([]types.MessageSummary, error)
}

// LookupError reports a failed stream or backlog lookup.
type LookupError struct {
	What string // "streams" or "backlog"
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("compose: look up %s: %v", e.What, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Composer builds Slack messages. It holds no per-call state.
type Composer struct {
	streams  StreamLookup
	backlog  BacklogLookup
	renderer render.Renderer
	metrics  *metrics.Registry
	log      *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithMetrics counts template failures in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Composer) { c.metrics = m }
}

// WithLogger sets the logger used for template failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a Composer. A nil renderer defaults to render.TextTemplate.
// Nil lookups resolve to no streams and an empty backlog.
func New(streams StreamLookup, backlog BacklogLookup, r render.Renderer, opts ...Option) *Composer {
	if r == nil {
		r = render.TextTemplate{}
	}
	c := &Composer{
		streams:  streams,
		backlog:  backlog,
		renderer: r,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose builds the message for ectx under cfg. Only lookup failures are
// returned as errors; they are *LookupError.
func (c *Composer) Compose(ctx context.Context, ectx *types.EventContext, cfg config.Notification) (*slack.Message, error) {
	if ectx == nil {
		ectx = &types.EventContext{}
	}

	msg := &slack.Message{
		Color:     cfg.Color,
		IconEmoji: cfg.IconEmoji,
		IconURL:   cfg.IconURL,
		UserName:  cfg.UserName,
		Channel:   cfg.Channel,
		// @channel is plain text unless names are linked.
		LinkNames: cfg.LinkNames || cfg.NotifyChannel,
		Text:      DefaultText(ectx, cfg),
	}

	if cfg.CustomMessage == "" && cfg.BacklogItemMessage == "" {
		return msg, nil
	}

	in, backlog, err := c.resolve(ctx, ectx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.CustomMessage != "" {
		text := c.render(TemplateCustomMessage, cfg.CustomMessage, model.CustomMessage(in, backlog))
		msg.CustomText = &text
	}
	if cfg.BacklogItemMessage != "" {
		msg.BacklogItemTexts = make([]string, 0, len(backlog))
		for _, item := range backlog {
			msg.BacklogItemTexts = append(msg.BacklogItemTexts,
				c.render(TemplateBacklogItem, cfg.BacklogItemMessage, model.BacklogItem(in, item)))
		}
	}
	return msg, nil
}

// DefaultText returns the summary line:
//
//	{audience}*Alert {title}* triggered:\n> {description} \n
func DefaultText(ectx *types.EventContext, cfg config.Notification) string {
	audience := ""
	if cfg.NotifyChannel {
		audience = "@channel "
	}
	title, description := UnnamedTitle, ""
	if ectx != nil && ectx.EventDefinition != nil {
		title = ectx.EventDefinition.Title
		description = ectx.EventDefinition.Description
	}
	return fmt.Sprintf("%s*Alert %s* triggered:\n> %s \n", audience, titleMarkup(title, cfg.UIURL), description)
}

func titleMarkup(title, uiURL string) string {
	if uiURL != "" {
		return "<" + uiURL + "|" + title + ">"
	}
	return "_" + title + "_"
}

// resolve looks up the streams and the backlog shared by every template.
func (c *Composer) resolve(ctx context.Context, ectx *types.EventContext, cfg config.Notification) (model.Input, []types.MessageSummary, error) {
	in := model.Input{Context: ectx, UIURL: cfg.UIURL}

	if ids := ectx.Event.SourceStreams; len(ids) > 0 && c.streams != nil {
		streams, err := c.streams.StreamsByIDs(ctx, ids)
		if err != nil {
			return in, nil, &LookupError{What: "streams", Err: err}
		}
		in.Streams = make([]deeplink.StreamLink, 0, len(streams))
		for _, s := range streams {
			in.Streams = append(in.Streams, deeplink.Build(s, ectx, cfg.UIURL))
		}
	}

	backlog := ectx.Backlog
	if backlog == nil && c.backlog != nil {
		var err error
		backlog, err = c.backlog.Backlog(ctx, ectx, cfg.BacklogSize)
		if err != nil {
			return in, nil, &LookupError{What: "backlog", Err: err}
		}
	}
	return in, backlog, nil
}

// render executes tmpl, replacing a failure with its error text.
func (c *Composer) render(name, tmpl string, data model.Data) string {
	out, err := c.renderer.Render(tmpl, data)
	if err != nil {
		c.log.Error("compose: template failed", "template", name, "err", err)
		c.metrics.TemplateError(name)
		return err.Error()
	}
	return out
}
