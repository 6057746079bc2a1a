package deeplink

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/obsidianstack/slacknotify/pkg/types"
)

var stream = types.Stream{ID: "5f1a", Title: "Web", Description: "web servers"}

func aggregationContext(query string) *types.EventContext {
	return &types.EventContext{
		Event: types.Event{Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		EventDefinition: &types.EventDefinition{
			ID:     "def-1",
			Title:  "Errors",
			Config: types.ProcessorConfig{Type: types.AggregationProcessorType, Query: query},
		},
	}
}

func TestBuild_NoBaseURL(t *testing.T) {
	link := Build(stream, aggregationContext("level:3"), "")

	assert.Equal(t, Unknown, link.URL)
	assert.Equal(t, "5f1a", link.ID)
	assert.Equal(t, "Web", link.Title)
	assert.Equal(t, "web servers", link.Description)
}

func TestBuild_PlainSearchLink(t *testing.T) {
	tests := []struct {
		name string
		base string
		ectx *types.EventContext
	}{
		{"no definition", "https://logs.example.com", &types.EventContext{}},
		{"nil context", "https://logs.example.com/", nil},
		{"non-aggregation definition", "https://logs.example.com", &types.EventContext{
			EventDefinition: &types.EventDefinition{Config: types.ProcessorConfig{Type: "correlation-v1", Query: "x"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := Build(stream, tt.ectx, tt.base)
			assert.Equal(t, "https://logs.example.com/streams/5f1a/search", link.URL)
		})
	}
}

func TestBuild_AggregationAddsQueryAndSynthesizedRange(t *testing.T) {
	link := Build(stream, aggregationContext("source:web AND level:3"), "https://logs.example.com")

	want := "https://logs.example.com/streams/5f1a/search" +
		"?q=source%3Aweb+AND+level%3A3" +
		"&rangetype=absolute" +
		"&from=2024-03-01T09%3A59%3A45.000Z" +
		"&to=2024-03-01T10%3A00%3A15.000Z"
	assert.Equal(t, want, link.URL)
}

func TestBuild_AggregationUsesExplicitTimerange(t *testing.T) {
	ectx := aggregationContext("*")
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	ectx.Event.TimerangeStart = &start
	ectx.Event.TimerangeEnd = &end

	link := Build(stream, ectx, "https://logs.example.com/")

	assert.Contains(t, link.URL, "&from=2024-03-01T09%3A00%3A00.000Z")
	assert.Contains(t, link.URL, "&to=2024-03-01T09%3A05%3A00.000Z")
}

func TestBuild_SingleSlashBetweenBaseAndStreams(t *testing.T) {
	for _, base := range []string{"https://logs.example.com", "https://logs.example.com/"} {
		link := Build(stream, aggregationContext("x"), base)
		assert.Equal(t, 1, strings.Count(link.URL, "example.com/streams/"), base)
		assert.NotContains(t, link.URL, "//streams")
	}
}

func TestBuildWith_EncoderFailureFallsBackToRawValue(t *testing.T) {
	failing := func(string) (string, error) { return "", errors.New("boom") }

	link := BuildWith(failing, stream, aggregationContext("a b"), "https://logs.example.com")

	assert.Contains(t, link.URL, "?q=a b&rangetype=absolute")
	assert.Contains(t, link.URL, "&from=2024-03-01T09:59:45.000Z")
}

func TestBuild_OffsetZoneKeepsOffset(t *testing.T) {
	ectx := aggregationContext("")
	ectx.Event.Timestamp = time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))

	link := Build(stream, ectx, "https://logs.example.com")

	assert.Contains(t, link.URL, "?q=&rangetype=absolute")
	assert.Contains(t, link.URL, "from=2024-03-01T09%3A59%3A45.000%2B01%3A00")
}
