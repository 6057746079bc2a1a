package storage

import (
	"context"
	"fmt"

	"github.com/obsidianstack/slacknotify/pkg/types"
)

// UpsertStream creates or replaces a stream.
func (s *Store) UpsertStream(ctx context.Context, st types.Stream) error {
	if st.ID == "" {
		return fmt.Errorf("storage: stream id is required")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO streams (id, title, description) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, description = excluded.description`),
		st.ID, st.Title, st.Description,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert stream %s: %w", st.ID, err)
	}
	return nil
}

// StreamsByIDs returns the streams with the given ids, in the order the ids
// are given. Unknown ids are skipped.
func (s *Store) StreamsByIDs(ctx context.Context, ids []string) ([]types.Stream, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, title, description FROM streams WHERE id IN (`+placeholders(len(ids))+`)`), args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query streams: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]types.Stream, len(ids))
	for rows.Next() {
		var st types.Stream
		if err := rows.Scan(&st.ID, &st.Title, &st.Description); err != nil {
			return nil, fmt.Errorf("storage: scan stream: %w", err)
		}
		byID[st.ID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate streams: %w", err)
	}

	out := make([]types.Stream, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if st, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, st)
		}
	}
	return out, nil
}
