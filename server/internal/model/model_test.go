package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/slacknotify/pkg/types"
	"github.com/obsidianstack/slacknotify/server/internal/deeplink"
)

func fullContext() *types.EventContext {
	return &types.EventContext{
		Event: types.Event{
			ID:            "ev-1",
			Message:       "Disk full on db-1",
			Priority:      3,
			Alert:         true,
			Timestamp:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			SourceStreams: []string{"s1"},
		},
		EventDefinition: &types.EventDefinition{
			ID:          "def-1",
			Title:       "Disk full",
			Description: "Disk usage above 90%",
			Config:      types.ProcessorConfig{Type: types.AggregationProcessorType, Query: "disk"},
		},
		JobTrigger: &types.JobTrigger{ID: "trig-1", JobDefinitionID: "job-1"},
	}
}

var links = []deeplink.StreamLink{{ID: "s1", Title: "DB", Description: "database", URL: "https://ui/streams/s1/search"}}

var backlog = []types.MessageSummary{
	{ID: "m1", Message: "first", Source: "db-1"},
	{ID: "m2", Message: "second", Source: "db-1"},
}

func TestCustomMessage_AllFields(t *testing.T) {
	d := CustomMessage(Input{Context: fullContext(), Streams: links, UIURL: "https://ui"}, backlog)

	assert.Equal(t, "def-1", d[KeyEventDefinitionID])
	assert.Equal(t, types.AggregationProcessorType, d[KeyEventDefinitionType])
	assert.Equal(t, "Disk full", d[KeyEventDefinitionTitle])
	assert.Equal(t, "Disk usage above 90%", d[KeyEventDefinitionDescription])
	assert.Equal(t, "job-1", d[KeyJobDefinitionID])
	assert.Equal(t, "trig-1", d[KeyJobTriggerID])
	assert.Equal(t, "https://ui", d[KeyUIURL])
	assert.Equal(t, 2, d[KeyBacklogSize])

	event, ok := d[KeyEvent].(map[string]any)
	require.True(t, ok, "event should be a map")
	assert.Equal(t, "Disk full on db-1", event["message"])
	assert.Equal(t, true, event["alert"])

	items, ok := d[KeyBacklog].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].(map[string]any)["message"])
	assert.Equal(t, "second", items[1].(map[string]any)["message"])

	streams := d[KeyStreams].([]any)
	require.Len(t, streams, 1)
	assert.Equal(t, "https://ui/streams/s1/search", streams[0].(map[string]any)["url"])

	_, hasItem := d[KeyBacklogItem]
	assert.False(t, hasItem, "custom model must not carry backlog_item")
}

func TestBacklogItem_CarriesSingleItem(t *testing.T) {
	d := BacklogItem(Input{Context: fullContext(), Streams: links}, backlog[1])

	item, ok := d[KeyBacklogItem].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "m2", item["id"])

	_, hasBacklog := d[KeyBacklog]
	assert.False(t, hasBacklog)
	_, hasSize := d[KeyBacklogSize]
	assert.False(t, hasSize)
	assert.Equal(t, Unknown, d[KeyUIURL])
}

func TestModels_MissingContextUsesUnknown(t *testing.T) {
	for name, d := range map[string]Data{
		"custom":       CustomMessage(Input{Context: &types.EventContext{}}, nil),
		"backlog item": BacklogItem(Input{}, types.MessageSummary{}),
	} {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{
				KeyEventDefinitionID, KeyEventDefinitionType, KeyEventDefinitionTitle,
				KeyEventDefinitionDescription, KeyJobDefinitionID, KeyJobTriggerID, KeyUIURL,
			} {
				assert.Equal(t, Unknown, d[k], k)
			}
			assert.NotNil(t, d[KeyEvent])
			assert.Equal(t, []any{}, d[KeyStreams])
		})
	}
}

func TestCustomMessage_EmptyBacklog(t *testing.T) {
	d := CustomMessage(Input{Context: fullContext()}, nil)
	assert.Equal(t, 0, d[KeyBacklogSize])
	assert.Equal(t, []any{}, d[KeyBacklog])
}

func TestModels_Idempotent(t *testing.T) {
	in := Input{Context: fullContext(), Streams: links, UIURL: "https://ui"}

	assert.Equal(t, CustomMessage(in, backlog), CustomMessage(in, backlog))
	assert.Equal(t, BacklogItem(in, backlog[0]), BacklogItem(in, backlog[0]))
}

func TestModels_NotShared(t *testing.T) {
	in := Input{Context: fullContext(), Streams: links}
	a := BacklogItem(in, backlog[0])
	b := BacklogItem(in, backlog[0])

	a[KeyEventDefinitionTitle] = "mutated"
	a[KeyStreams].([]any)[0].(map[string]any)["title"] = "mutated"

	assert.Equal(t, "Disk full", b[KeyEventDefinitionTitle])
	assert.Equal(t, "DB", b[KeyStreams].([]any)[0].(map[string]any)["title"])
}

func TestModels_CarryFullEventDefinition(t *testing.T) {
	for name, d := range map[string]Data{
		"custom":       CustomMessage(Input{Context: fullContext()}, backlog),
		"backlog item": BacklogItem(Input{Context: fullContext()}, backlog[0]),
	} {
		t.Run(name, func(t *testing.T) {
			def, ok := d[KeyEventDefinition].(map[string]any)
			require.True(t, ok, "event_definition should be a map")
			assert.Equal(t, "def-1", def["id"])
			cfg, ok := def["config"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "disk", cfg["query"])
			assert.Equal(t, types.AggregationProcessorType, cfg["type"])
		})
	}

	d := CustomMessage(Input{Context: &types.EventContext{}}, nil)
	_, has := d[KeyEventDefinition]
	assert.False(t, has, "no definition, no event_definition key")
}

func TestToMap_NonObjectIsEmpty(t *testing.T) {
	assert.Equal(t, map[string]any{}, toMap([]string{"a"}))
	assert.Equal(t, map[string]any{}, toMap(func() {}))
}
