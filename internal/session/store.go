package session

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed migrations/001_sessions.sql
var sessionsSchema string

// Store persists sessions in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the session database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}
	if err := store.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// migrate applies the embedded schema. Idempotent.
func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(stripSQLComments(sessionsSchema), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement: %w", err)
		}
	}
	return tx.Commit()
}

// stripSQLComments drops full-line comments before the schema is split on
// semicolons; a leading comment would otherwise ride along with the first
// statement of its chunk.
func stripSQLComments(schema string) string {
	var b strings.Builder
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Save upserts a session snapshot.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	snap := sess.Snapshot()
	actions, err := json.Marshal(snap.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	var endedAt sql.NullString
	if snap.EndedAt != nil {
		endedAt = sql.NullString{String: snap.EndedAt.Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, started_at, ended_at, user_request, outcome, final_result,
			llm_calls, tool_calls, tool_failures, input_tokens, output_tokens,
			duration_ms, actions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			outcome = excluded.outcome,
			final_result = excluded.final_result,
			llm_calls = excluded.llm_calls,
			tool_calls = excluded.tool_calls,
			tool_failures = excluded.tool_failures,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			duration_ms = excluded.duration_ms,
			actions = excluded.actions`,
		snap.ID, snap.StartedAt.Format(time.RFC3339Nano), endedAt,
		snap.UserRequest, snap.Outcome, snap.FinalResult,
		snap.Metrics.LLMCalls, snap.Metrics.ToolCalls, snap.Metrics.ToolFailures,
		snap.Metrics.InputTokens, snap.Metrics.OutputTokens,
		snap.Metrics.DurationMS, string(actions),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get loads a session by id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, ended_at, user_request, outcome, final_result,
		       llm_calls, tool_calls, tool_failures, input_tokens, output_tokens,
		       duration_ms, actions
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// Summary is a session row without its action log.
type Summary struct {
	ID          string
	StartedAt   time.Time
	UserRequest string
	Outcome     string
	ToolCalls   int
	DurationMS  int64
}

// List returns the most recent sessions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, user_request, outcome, tool_calls, duration_ms
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var started string
		var outcome sql.NullString
		if err := rows.Scan(&sum.ID, &started, &sum.UserRequest, &outcome, &sum.ToolCalls, &sum.DurationMS); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.Outcome = outcome.String
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var started string
	var ended, outcome, finalResult sql.NullString
	var actions string

	err := row.Scan(&sess.ID, &started, &ended, &sess.UserRequest, &outcome, &finalResult,
		&sess.Metrics.LLMCalls, &sess.Metrics.ToolCalls, &sess.Metrics.ToolFailures,
		&sess.Metrics.InputTokens, &sess.Metrics.OutputTokens,
		&sess.Metrics.DurationMS, &actions)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if ended.Valid {
		t, err := time.Parse(time.RFC3339Nano, ended.String)
		if err == nil {
			sess.EndedAt = &t
		}
	}
	sess.Outcome = outcome.String
	sess.FinalResult = finalResult.String
	if err := json.Unmarshal([]byte(actions), &sess.Actions); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	return &sess, nil
}
