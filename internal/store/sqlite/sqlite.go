// Package sqlite is a single-file checkpoint store for local use.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/vishalm/LlamaBot/internal/store"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers; sqlite allows one at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) (err error) {
	next := checkpoint.Next
	if next == nil {
		next = []string{}
	}
	nextBytes, err := json.Marshal(next)
	if err != nil {
		return err
	}
	state := checkpoint.State
	if len(state) == 0 {
		state = json.RawMessage("{}")
	}
	createdAt := sortableTime(checkpoint.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, id, parent_id, step, node, next, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, checkpoint.ThreadID, checkpoint.ID, nullString(checkpoint.ParentID), checkpoint.Step, checkpoint.Node, string(nextBytes), string(state), createdAt); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO threads (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET
			title = CASE WHEN threads.title = '' THEN excluded.title ELSE threads.title END,
			updated_at = excluded.updated_at
	`, checkpoint.ThreadID, store.TitleFromState(state), createdAt, createdAt); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	checkpoints, err := s.ListCheckpoints(ctx, threadID, 1)
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, nil
	}
	return &checkpoints[0], nil
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context, threadID string, limit int) ([]store.Checkpoint, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, id, parent_id, step, node, next, state, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Checkpoint{}
	for rows.Next() {
		var checkpoint store.Checkpoint
		var parentID sql.NullString
		var next string
		var state string
		if err := rows.Scan(&checkpoint.ThreadID, &checkpoint.ID, &parentID, &checkpoint.Step, &checkpoint.Node, &next, &state, &checkpoint.CreatedAt); err != nil {
			return nil, err
		}
		checkpoint.ParentID = parentID.String
		if err := json.Unmarshal([]byte(next), &checkpoint.Next); err != nil {
			return nil, fmt.Errorf("decode next: %w", err)
		}
		if len(checkpoint.Next) == 0 {
			checkpoint.Next = nil
		}
		checkpoint.State = json.RawMessage(state)
		results = append(results, checkpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQLiteStore) ListThreads(ctx context.Context) ([]store.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM threads
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Thread{}
	for rows.Next() {
		var thread store.Thread
		if err := rows.Scan(&thread.ID, &thread.Title, &thread.CreatedAt, &thread.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, query := range []string{
		"DELETE FROM checkpoints WHERE thread_id = ?",
		"DELETE FROM thread_events WHERE thread_id = ?",
		"DELETE FROM thread_event_sequences WHERE thread_id = ?",
		"DELETE FROM threads WHERE id = ?",
	} {
		if _, err = tx.ExecContext(ctx, query, threadID); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func (s *SQLiteStore) NextSeq(ctx context.Context, threadID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO thread_event_sequences (thread_id, last_seq)
		VALUES (?, 1)
		ON CONFLICT (thread_id)
		DO UPDATE SET last_seq = thread_event_sequences.last_seq + 1
		RETURNING last_seq
	`, threadID).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, event store.Event) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	timestamp := sortableTime(event.Timestamp)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thread_events (thread_id, seq, request_id, type, node, timestamp, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ThreadID, event.Seq, nullString(event.RequestID), store.NormalizeEventType(event.Type), nullString(event.Node), timestamp, string(encoded))
	return err
}

func (s *SQLiteStore) ListEvents(ctx context.Context, threadID string, afterSeq int64) ([]store.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, seq, request_id, type, node, timestamp, payload
		FROM thread_events
		WHERE thread_id = ? AND seq > ?
		ORDER BY seq ASC
	`, threadID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Event{}
	for rows.Next() {
		var event store.Event
		var requestID sql.NullString
		var node sql.NullString
		var payload string
		if err := rows.Scan(&event.ThreadID, &event.Seq, &requestID, &event.Type, &node, &event.Timestamp, &payload); err != nil {
			return nil, err
		}
		event.RequestID = requestID.String
		event.Node = node.String
		event.Payload = map[string]any{}
		if err := json.Unmarshal([]byte(payload), &event.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sortableTime rewrites an RFC 3339 timestamp into timeLayout in UTC. Empty
// input means now; unparseable input is stored as given.
func sortableTime(value string) string {
	if value == "" {
		return time.Now().UTC().Format(timeLayout)
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.UTC().Format(timeLayout)
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
