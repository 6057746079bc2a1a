package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/slacknotify/pkg/types"
	"github.com/obsidianstack/slacknotify/server/internal/compose"
	"github.com/obsidianstack/slacknotify/server/internal/config"
	"github.com/obsidianstack/slacknotify/server/internal/sysnotify"
)

var (
	_ compose.StreamLookup  = (*Store)(nil)
	_ compose.BacklogLookup = (*Store)(nil)
	_ sysnotify.Store       = (*Store)(nil)
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), config.StorageConfig{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "mysql", DSN: "x"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestStreams(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertStream(ctx, types.Stream{ID: "s1", Title: "DB", Description: "database"}))
	require.NoError(t, s.UpsertStream(ctx, types.Stream{ID: "s2", Title: "Web"}))
	require.NoError(t, s.UpsertStream(ctx, types.Stream{ID: "s1", Title: "Database", Description: "db logs"}))

	got, err := s.StreamsByIDs(ctx, []string{"s2", "missing", "s1"})
	require.NoError(t, err)
	assert.Equal(t, []types.Stream{
		{ID: "s2", Title: "Web"},
		{ID: "s1", Title: "Database", Description: "db logs"},
	}, got)

	got, err = s.StreamsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, s.UpsertStream(ctx, types.Stream{Title: "no id"}))
}

func TestBacklog(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, m := range []types.MessageSummary{
		{ID: "m3", StreamID: "s1", Message: "third", Timestamp: at.Add(10 * time.Second)},
		{ID: "m1", StreamID: "s1", Message: "first", Timestamp: at.Add(-10 * time.Second), Fields: map[string]any{"level": "3"}},
		{ID: "m2", StreamID: "s1", Message: "second", Timestamp: at},
		{ID: "other", StreamID: "s2", Message: "other stream", Timestamp: at},
		{ID: "late", StreamID: "s1", Message: "outside window", Timestamp: at.Add(time.Minute)},
	} {
		_, err := s.AppendMessage(ctx, m)
		require.NoError(t, err)
	}

	ectx := &types.EventContext{Event: types.Event{Timestamp: at, SourceStreams: []string{"s1"}}}

	got, err := s.Backlog(ctx, ectx, 20)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
	assert.Equal(t, "m3", got[2].ID)
	assert.Equal(t, map[string]any{"level": "3"}, got[0].Fields)
	assert.True(t, got[0].Timestamp.Equal(at.Add(-10*time.Second)))

	got, err = s.Backlog(ctx, ectx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Explicit timerange wins over the synthesized window.
	start, end := at.Add(30*time.Second), at.Add(2*time.Minute)
	ectx.Event.TimerangeStart, ectx.Event.TimerangeEnd = &start, &end
	got, err = s.Backlog(ctx, ectx, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "late", got[0].ID)

	got, err = s.Backlog(ctx, ectx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBacklog_DefinitionStreamsFallback(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.AppendMessage(ctx, types.MessageSummary{ID: "a", StreamID: "s1", Timestamp: at})
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, types.MessageSummary{ID: "b", StreamID: "s2", Timestamp: at})
	require.NoError(t, err)

	ectx := &types.EventContext{
		Event:           types.Event{Timestamp: at},
		EventDefinition: &types.EventDefinition{Config: types.ProcessorConfig{Streams: []string{"s2"}}},
	}
	got, err := s.Backlog(ctx, ectx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	ectx.EventDefinition = nil
	got, err = s.Backlog(ctx, ectx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2, "no stream filter when no streams are known")
}

func TestAppendMessage_Defaults(t *testing.T) {
	s := openSQLite(t)
	m, err := s.AppendMessage(context.Background(), types.MessageSummary{StreamID: "s1", Message: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.Timestamp.IsZero())

	_, err = s.AppendMessage(context.Background(), types.MessageSummary{Message: "no stream"})
	assert.Error(t, err)
}

func TestSystemNotifications_PublishIfFirst(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	n := sysnotify.Notification{
		ID: "n1", Node: "node-1", Type: sysnotify.TypeGeneric, Severity: sysnotify.SeverityNormal,
		Details: map[string]string{sysnotify.DetailException: "boom"}, CreatedAt: at,
	}
	ok, err := s.PublishIfFirst(ctx, n)
	require.NoError(t, err)
	assert.True(t, ok)

	dup := n
	dup.ID = "n2"
	ok, err = s.PublishIfFirst(ctx, dup)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := s.SystemNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, n, list[0])

	removed, err := s.DismissSystemNotification(ctx, sysnotify.TypeGeneric)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.DismissSystemNotification(ctx, sysnotify.TypeGeneric)
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err = s.PublishIfFirst(ctx, dup)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_WithSQLiteStore(t *testing.T) {
	s := openSQLite(t)
	svc := sysnotify.NewService(s, "node-1", nil)

	require.NoError(t, svc.ReportFailure(context.Background(), "first"))
	require.NoError(t, svc.ReportFailure(context.Background(), "second"))

	list, err := s.SystemNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Details[sysnotify.DetailException])
	assert.Equal(t, "node-1", list[0].Node)
}

func TestOpen_SQLiteFileUsesWAL(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "notify.db")
	s, err := Open(context.Background(), config.StorageConfig{Driver: DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRowContext(context.Background(), "PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}
