package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/obsidianstack/slacknotify/server/internal/sysnotify"
)

// PublishIfFirst stores n unless a notification of the same type is pending.
// It reports whether n was stored.
func (s *Store) PublishIfFirst(ctx context.Context, n sysnotify.Notification) (bool, error) {
	details, err := json.Marshal(n.Details)
	if err != nil {
		return false, fmt.Errorf("storage: encode details: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO system_notifications (type, id, node, severity, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (type) DO NOTHING`),
		n.Type, n.ID, n.Node, n.Severity, string(details), n.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("storage: insert system notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: rows affected: %w", err)
	}
	return affected == 1, nil
}

// SystemNotifications returns the pending notifications, oldest first.
func (s *Store) SystemNotifications(ctx context.Context) ([]sysnotify.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, id, node, severity, details, created_at FROM system_notifications ORDER BY created_at, type`)
	if err != nil {
		return nil, fmt.Errorf("storage: query system notifications: %w", err)
	}
	defer rows.Close()

	out := []sysnotify.Notification{}
	for rows.Next() {
		var (
			n       sysnotify.Notification
			details string
			created int64
		)
		if err := rows.Scan(&n.Type, &n.ID, &n.Node, &n.Severity, &details, &created); err != nil {
			return nil, fmt.Errorf("storage: scan system notification: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &n.Details); err != nil {
			return nil, fmt.Errorf("storage: decode details of %s: %w", n.Type, err)
		}
		n.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate system notifications: %w", err)
	}
	return out, nil
}

// DismissSystemNotification removes the pending notification of typ and
// reports whether there was one.
func (s *Store) DismissSystemNotification(ctx context.Context, typ string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM system_notifications WHERE type = ?`), typ)
	if err != nil {
		return false, fmt.Errorf("storage: delete system notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: rows affected: %w", err)
	}
	return affected > 0, nil
}
