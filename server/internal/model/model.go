package model

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/obsidianstack/slacknotify/pkg/types"
	"github.com/obsidianstack/slacknotify/server/internal/deeplink"
)

// Unknown is the value of every key whose source is missing.
const Unknown = deeplink.Unknown

// Keys of the template data model.
const (
	KeyEventDefinitionID          = "event_definition_id"
	KeyEventDefinitionType        = "event_definition_type"
	KeyEventDefinitionTitle       = "event_definition_title"
	KeyEventDefinitionDescription = "event_definition_description"
	KeyEventDefinition            = "event_definition"
	KeyJobDefinitionID            = "job_definition_id"
	KeyJobTriggerID               = "job_trigger_id"
	KeyEvent                      = "event"
	KeyStreams                    = "streams"
	KeyUIURL                      = "ui_url"
	KeyBacklog                    = "backlog"
	KeyBacklogSize                = "backlog_size"
	KeyBacklogItem                = "backlog_item"
)

// Data is the template data model.
type Data = map[string]any

// Input is what both model variants are built from.
type Input struct {
	Context *types.EventContext
	Streams []deeplink.StreamLink
	UIURL   string
}

// CustomMessage returns the model for the custom message template.
func CustomMessage(in Input, backlog []types.MessageSummary) Data {
	d := base(in)
	items := make([]any, 0, len(backlog))
	for _, m := range backlog {
		items = append(items, toMap(m))
	}
	d[KeyBacklog] = items
	d[KeyBacklogSize] = len(backlog)
	return d
}

// BacklogItem returns the model for one backlog item message.
func BacklogItem(in Input, item types.MessageSummary) Data {
	d := base(in)
	d[KeyBacklogItem] = toMap(item)
	return d
}

func base(in Input) Data {
	ectx := in.Context
	if ectx == nil {
		ectx = &types.EventContext{}
	}

	d := Data{
		KeyEventDefinitionID:          Unknown,
		KeyEventDefinitionType:        Unknown,
		KeyEventDefinitionTitle:       Unknown,
		KeyEventDefinitionDescription: Unknown,
		KeyJobDefinitionID:            Unknown,
		KeyJobTriggerID:               Unknown,
		KeyUIURL:                      Unknown,
	}
	if def := ectx.EventDefinition; def != nil {
		d[KeyEventDefinitionID] = def.ID
		d[KeyEventDefinitionType] = def.Config.Type
		d[KeyEventDefinitionTitle] = def.Title
		d[KeyEventDefinitionDescription] = def.Description
		d[KeyEventDefinition] = toMap(def)
	}
	if jt := ectx.JobTrigger; jt != nil {
		d[KeyJobDefinitionID] = jt.JobDefinitionID
		d[KeyJobTriggerID] = jt.ID
	}
	if in.UIURL != "" {
		d[KeyUIURL] = in.UIURL
	}

	d[KeyEvent] = toMap(ectx.Event)

	streams := make([]any, 0, len(in.Streams))
	for _, s := range in.Streams {
		streams = append(streams, map[string]any{
			"id":          s.ID,
			"title":       s.Title,
			"description": s.Description,
			"url":         s.URL,
		})
	}
	d[KeyStreams] = streams
	return d
}

// toMap converts v into its JSON object form so templates address fields by
// their snake_case names. Values that cannot be encoded yield an empty map.
func toMap(v any) map[string]any {
	out := map[string]any{}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("model: encode template value", "type", fmt.Sprintf("%T", v), "err", err)
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		slog.Warn("model: template value is not an object", "type", fmt.Sprintf("%T", v), "err", err)
		return map[string]any{}
	}
	return out
}
