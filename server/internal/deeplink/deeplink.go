package deeplink

import (
	"net/url"
	"strings"
	"time"

	"github.com/obsidianstack/slacknotify/pkg/types"
)

// Unknown marks values that cannot be derived from the available context.
const Unknown = "<unknown>"

// TimeLayout is the ISO-8601 layout used for range bounds in search links.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// StreamLink is a stream together with its resolved search URL.
type StreamLink struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Encoder escapes a query parameter value. It may fail, in which case the raw
// value is used instead.
type Encoder func(string) (string, error)

// QueryEncoder is the default Encoder.
func QueryEncoder(s string) (string, error) {
	return url.QueryEscape(s), nil
}

// Build returns the link data for stream using QueryEncoder.
func Build(stream types.Stream, ectx *types.EventContext, baseURL string) StreamLink {
	return BuildWith(QueryEncoder, stream, ectx, baseURL)
}

// BuildWith is Build with a custom encoder.
func BuildWith(enc Encoder, stream types.Stream, ectx *types.EventContext, baseURL string) StreamLink {
	return StreamLink{
		ID:          stream.ID,
		Title:       stream.Title,
		Description: stream.Description,
		URL:         streamURL(enc, stream.ID, ectx, baseURL),
	}
}

func streamURL(enc Encoder, streamID string, ectx *types.EventContext, baseURL string) string {
	if baseURL == "" {
		return Unknown
	}

	var b strings.Builder
	b.WriteString(baseURL)
	if !strings.HasSuffix(baseURL, "/") {
		b.WriteByte('/')
	}
	b.WriteString("streams/")
	b.WriteString(streamID)
	b.WriteString("/search")

	if ectx == nil || ectx.EventDefinition == nil || !ectx.EventDefinition.Config.IsAggregation() {
		return b.String()
	}

	from, to := ectx.Event.SearchRange()
	b.WriteString("?q=")
	b.WriteString(encode(enc, ectx.EventDefinition.Config.Query))
	b.WriteString("&rangetype=absolute&from=")
	b.WriteString(encodeTime(enc, from))
	b.WriteString("&to=")
	b.WriteString(encodeTime(enc, to))
	return b.String()
}

func encode(enc Encoder, v string) string {
	out, err := enc(v)
	if err != nil {
		return v
	}
	return out
}

func encodeTime(enc Encoder, t time.Time) string {
	return encode(enc, t.Format(TimeLayout))
}
