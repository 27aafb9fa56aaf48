package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vishalm/LlamaBot/internal/store"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type PostgresStore struct {
	db *sql.DB
}

var (
	openDB  = sql.Open
	migrate = runMigrations
)

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"threads",
		"checkpoints",
		"thread_events",
		"thread_event_sequences",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found", table)
		}
	}
	return nil
}

func (p *PostgresStore) SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) (err error) {
	next, err := json.Marshal(nonNilStrings(checkpoint.Next))
	if err != nil {
		return err
	}
	state := checkpoint.State
	if len(state) == 0 {
		state = json.RawMessage("{}")
	}
	createdAt := parseTimestampValue(checkpoint.CreatedAt)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertCheckpoint = `
		INSERT INTO checkpoints (thread_id, id, parent_id, step, node, next, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err = tx.ExecContext(ctx, insertCheckpoint,
		checkpoint.ThreadID,
		checkpoint.ID,
		nullString(checkpoint.ParentID),
		checkpoint.Step,
		checkpoint.Node,
		next,
		[]byte(state),
		createdAt,
	); err != nil {
		return err
	}

	const upsertThread = `
		INSERT INTO threads (id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id)
		DO UPDATE SET
			title = CASE WHEN threads.title = '' THEN EXCLUDED.title ELSE threads.title END,
			updated_at = EXCLUDED.updated_at
	`
	if _, err = tx.ExecContext(ctx, upsertThread, checkpoint.ThreadID, store.TitleFromState(state), createdAt); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

const checkpointColumns = `thread_id, id, parent_id, step, node, next, state, created_at`

func (p *PostgresStore) LatestCheckpoint(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	checkpoints, err := p.queryCheckpoints(ctx, `
		SELECT `+checkpointColumns+`
		FROM checkpoints
		WHERE thread_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, threadID)
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, nil
	}
	return &checkpoints[0], nil
}

func (p *PostgresStore) ListCheckpoints(ctx context.Context, threadID string, limit int) ([]store.Checkpoint, error) {
	if limit <= 0 {
		return p.queryCheckpoints(ctx, `
			SELECT `+checkpointColumns+`
			FROM checkpoints
			WHERE thread_id = $1
			ORDER BY id DESC
		`, threadID)
	}
	return p.queryCheckpoints(ctx, `
		SELECT `+checkpointColumns+`
		FROM checkpoints
		WHERE thread_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, threadID, limit)
}

func (p *PostgresStore) queryCheckpoints(ctx context.Context, query string, args ...any) ([]store.Checkpoint, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Checkpoint{}
	for rows.Next() {
		var checkpoint store.Checkpoint
		var parentID sql.NullString
		var nextBytes []byte
		var stateBytes []byte
		var createdAt time.Time
		if err := rows.Scan(
			&checkpoint.ThreadID,
			&checkpoint.ID,
			&parentID,
			&checkpoint.Step,
			&checkpoint.Node,
			&nextBytes,
			&stateBytes,
			&createdAt,
		); err != nil {
			return nil, err
		}
		if parentID.Valid {
			checkpoint.ParentID = parentID.String
		}
		checkpoint.Next = decodeStringSlice(nextBytes)
		checkpoint.State = json.RawMessage(append([]byte(nil), stateBytes...))
		checkpoint.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		results = append(results, checkpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) ListThreads(ctx context.Context) ([]store.Thread, error) {
	const query = `
		SELECT id, title, created_at, updated_at
		FROM threads
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Thread{}
	for rows.Next() {
		var thread store.Thread
		var createdAt time.Time
		var updatedAt time.Time
		if err := rows.Scan(&thread.ID, &thread.Title, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		thread.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		thread.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		results = append(results, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) DeleteThread(ctx context.Context, threadID string) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, query := range []string{
		"DELETE FROM checkpoints WHERE thread_id = $1",
		"DELETE FROM thread_events WHERE thread_id = $1",
		"DELETE FROM thread_event_sequences WHERE thread_id = $1",
		"DELETE FROM threads WHERE id = $1",
	} {
		if _, err = tx.ExecContext(ctx, query, threadID); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func (p *PostgresStore) NextSeq(ctx context.Context, threadID string) (int64, error) {
	const query = `
		INSERT INTO thread_event_sequences (thread_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (thread_id)
		DO UPDATE SET last_seq = thread_event_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, threadID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (p *PostgresStore) AppendEvent(ctx context.Context, event store.Event) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	timestamp := event.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	const query = `
		INSERT INTO thread_events (thread_id, seq, request_id, type, node, timestamp, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.db.ExecContext(ctx, query,
		event.ThreadID,
		event.Seq,
		nullString(event.RequestID),
		store.NormalizeEventType(event.Type),
		nullString(event.Node),
		parseTimestampValue(timestamp),
		encoded,
	)
	return err
}

func (p *PostgresStore) ListEvents(ctx context.Context, threadID string, afterSeq int64) ([]store.Event, error) {
	const query = `
		SELECT thread_id, seq, request_id, type, node, timestamp, payload
		FROM thread_events
		WHERE thread_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := p.db.QueryContext(ctx, query, threadID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Event{}
	for rows.Next() {
		var event store.Event
		var requestID sql.NullString
		var node sql.NullString
		var timestamp time.Time
		var payloadBytes []byte
		if err := rows.Scan(&event.ThreadID, &event.Seq, &requestID, &event.Type, &node, &timestamp, &payloadBytes); err != nil {
			return nil, err
		}
		event.RequestID = requestID.String
		event.Node = node.String
		event.Timestamp = timestamp.UTC().Format(time.RFC3339Nano)
		payload, err := decodeJSONMap(payloadBytes)
		if err != nil {
			return nil, err
		}
		event.Payload = payload
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func decodeStringSlice(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	values := []string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func decodeJSONMap(raw []byte) (map[string]any, error) {
	payload := map[string]any{}
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
