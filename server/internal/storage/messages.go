package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/slacknotify/pkg/types"
)

// AppendMessage stores one log message. A missing ID is generated, a zero
// timestamp becomes now. It returns the stored message.
func (s *Store) AppendMessage(ctx context.Context, m types.MessageSummary) (types.MessageSummary, error) {
	if m.StreamID == "" {
		return m, fmt.Errorf("storage: message stream_id is required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	m.Timestamp = m.Timestamp.UTC().Truncate(time.Millisecond)

	var fields sql.NullString
	if len(m.Fields) > 0 {
		b, err := json.Marshal(m.Fields)
		if err != nil {
			return m, fmt.Errorf("storage: encode fields: %w", err)
		}
		fields = nullStr(string(b))
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO messages (id, stream_id, idx, source, message, ts, fields) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.StreamID, m.Index, m.Source, m.Message, m.Timestamp.UnixMilli(), fields,
	)
	if err != nil {
		return m, fmt.Errorf("storage: insert message %s: %w", m.ID, err)
	}
	return m, nil
}

// Backlog returns up to limit messages that belong to the event: messages in
// the event's source streams (or, if it has none, the definition's streams;
// or, failing that, any stream) inside the event's search range, oldest
// first.
func (s *Store) Backlog(ctx context.Context, ectx *types.EventContext, limit int) ([]types.MessageSummary, error) {
	if ectx == nil || limit <= 0 {
		return []types.MessageSummary{}, nil
	}
	from, to := ectx.Event.SearchRange()

	streams := ectx.Event.SourceStreams
	if len(streams) == 0 && ectx.EventDefinition != nil {
		streams = ectx.EventDefinition.Config.Streams
	}

	var (
		where strings.Builder
		args  []any
	)
	where.WriteString("ts >= ? AND ts <= ?")
	args = append(args, from.UnixMilli(), to.UnixMilli())
	if len(streams) > 0 {
		where.WriteString(" AND stream_id IN (" + placeholders(len(streams)) + ")")
		for _, id := range streams {
			args = append(args, id)
		}
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, stream_id, idx, source, message, ts, fields FROM messages
		 WHERE `+where.String()+` ORDER BY ts, id LIMIT ?`), args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query backlog: %w", err)
	}
	defer rows.Close()

	out := []types.MessageSummary{}
	for rows.Next() {
		var (
			m      types.MessageSummary
			ts     int64
			fields sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.StreamID, &m.Index, &m.Source, &m.Message, &ts, &fields); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		m.Timestamp = time.UnixMilli(ts).UTC()
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &m.Fields); err != nil {
				return nil, fmt.Errorf("storage: decode fields of %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate backlog: %w", err)
	}
	return out, nil
}
