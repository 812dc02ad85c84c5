package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/secretlab/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry retryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := newSQLiteWithDB(db)
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// sqliteDSN applies WAL journaling and a busy timeout to every pooled
// connection, using the modernc driver's _pragma parameters.
func sqliteDSN(dbPath string) string {
	return dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
}

func newSQLiteWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, retry: defaultRetry}
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS scorecard (
		challenge TEXT PRIMARY KEY,
		completed INTEGER NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadScores returns every persisted entry.
func (s *SQLiteStore) LoadScores(ctx context.Context) (map[string]domain.ScoreEntry, error) {
	query := `SELECT challenge, completed, points, completed_at FROM scorecard`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query scorecard: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close scorecard rows", "error", closeErr)
		}
	}()

	entries := make(map[string]domain.ScoreEntry)
	for rows.Next() {
		var (
			name        string
			entry       domain.ScoreEntry
			completedAt sql.NullInt64
		)
		if err := rows.Scan(&name, &entry.Completed, &entry.Points, &completedAt); err != nil {
			return nil, fmt.Errorf("scan scorecard row: %w", err)
		}
		if completedAt.Valid {
			entry.CompletedAt = time.Unix(completedAt.Int64, 0)
		}
		entries[name] = entry
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scorecard: %w", err)
	}

	return entries, nil
}

// SaveScore creates or replaces the entry for a challenge.
func (s *SQLiteStore) SaveScore(ctx context.Context, challenge string, entry domain.ScoreEntry) error {
	query := `
	INSERT INTO scorecard (challenge, completed, points, completed_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(challenge) DO UPDATE SET
		completed = excluded.completed,
		points = excluded.points,
		completed_at = excluded.completed_at,
		updated_at = excluded.updated_at`

	var completedAt interface{}
	if !entry.CompletedAt.IsZero() {
		completedAt = entry.CompletedAt.Unix()
	}

	err := withRetry(ctx, s.retry, "save_score", func() error {
		_, err := s.db.ExecContext(ctx, query,
			challenge, entry.Completed, entry.Points, completedAt, time.Now().Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save score for %s: %w", challenge, err)
	}
	return nil
}

// DeleteScore removes the entry for a challenge.
func (s *SQLiteStore) DeleteScore(ctx context.Context, challenge string) error {
	query := `DELETE FROM scorecard WHERE challenge = ?`
	err := withRetry(ctx, s.retry, "delete_score", func() error {
		_, err := s.db.ExecContext(ctx, query, challenge)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete score for %s: %w", challenge, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
