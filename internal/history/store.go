package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"entomo/internal/cascade"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// completedLayout is fixed width so text order in completed_at matches time
// order.
const completedLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrSchemaMismatch indicates the database was written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Entry is one journaled classification.
type Entry struct {
	ID               int64
	RequestID        string
	SessionID        string
	ImageName        string
	Threshold        float64
	TopIdentifier    string
	TopConfidence    float64
	UsedSecondary    bool
	FinalIdentifier  string
	Fallback         bool
	FallbackReason   string
	SecondaryRawText string
	Candidates       []cascade.Candidate
	CompletedAt      time.Time
}

// Store persists entries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the journal at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start a new journal)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record journals a result. Recording the same request twice is a no-op.
func (s *Store) Record(ctx context.Context, sessionID, imageName string, result cascade.Result) error {
	if result.RequestID == "" {
		return errors.New("history record: request id required")
	}
	candidates, err := json.Marshal(result.Candidates)
	if err != nil {
		return fmt.Errorf("history record: encode candidates: %w", err)
	}
	completed := result.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO results (
            request_id, session_id, image_name, threshold, top_identifier, top_confidence,
            used_secondary, final_identifier, fallback, fallback_reason, secondary_raw_text,
            candidates_json, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RequestID,
		sessionID,
		imageName,
		result.Threshold,
		result.TopIdentifier,
		result.TopConfidence,
		boolToInt(result.UsedSecondaryModel),
		result.FinalIdentifier,
		boolToInt(result.Fallback),
		result.FallbackReason,
		result.SecondaryRawText,
		string(candidates),
		completed.UTC().Format(completedLayout),
	)
	if err != nil {
		return fmt.Errorf("history record: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, session_id, image_name, threshold, top_identifier, top_confidence,
            used_secondary, final_identifier, fallback, fallback_reason, secondary_raw_text,
            candidates_json, completed_at
        FROM results ORDER BY completed_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			usedInt    int
			fallback   int
			candidates string
			completed  string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.SessionID,
			&entry.ImageName,
			&entry.Threshold,
			&entry.TopIdentifier,
			&entry.TopConfidence,
			&usedInt,
			&entry.FinalIdentifier,
			&fallback,
			&entry.FallbackReason,
			&entry.SecondaryRawText,
			&candidates,
			&completed,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		entry.UsedSecondary = usedInt != 0
		entry.Fallback = fallback != 0
		if err := json.Unmarshal([]byte(candidates), &entry.Candidates); err != nil {
			return nil, fmt.Errorf("history decode candidates for %s: %w", entry.RequestID, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, completed); err == nil {
			entry.CompletedAt = ts
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
