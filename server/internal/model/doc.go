// Package model assembles the key/value data handed to message templates.
//
// Two variants exist. CustomMessage carries the whole backlog and its size;
// BacklogItem carries a single backlog entry under "backlog_item". Both carry
// the event definition and job trigger metadata (Unknown when absent), the
// full event definition under "event_definition" when there is one, the
// event itself, the resolved stream links and the UI URL.
//
// Every call builds a new map; nothing is shared between two results, so a
// template cannot leak state into the next render.
package model
