package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vidscribe/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transcriptions (
    video_id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    transcription TEXT NOT NULL,
    chapters TEXT NOT NULL,
    summary TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions(created_at);
`

const (
	saveRecordQuery = `
        INSERT OR REPLACE INTO transcriptions (
            video_id, created_at, transcription, chapters, summary
        ) VALUES (?, ?, ?, ?, ?)
    `

	loadRecordQuery = `
        SELECT video_id, created_at, transcription, chapters, summary
        FROM transcriptions WHERE video_id = ?
    `

	deleteRecordQuery = `
        DELETE FROM transcriptions WHERE video_id = ?
    `

	allRecordsQuery = `
        SELECT video_id, created_at, transcription, chapters, summary
        FROM transcriptions
    `
)

// SQLiteStore is the default durable tier: one row per video in a local
// SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	save  *sql.Stmt
	load  *sql.Stmt
	del   *sql.Stmt
	all   *sql.Stmt
	retry retryConfig
}

type retryConfig struct {
	maxAttempts int
	delay       time.Duration
}

func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	const op = "cache.NewSQLiteStore"

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.CacheIO(op, err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.CacheIO(op, err, "failed to open database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := execSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:    db,
		retry: retryConfig{maxAttempts: 3, delay: 100 * time.Millisecond},
	}
	if err := s.prepare(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func configurePragmas(db *sql.DB) error {
	const op = "cache.configurePragmas"

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.CacheIO(op, err, fmt.Sprintf("failed to set pragma: %s", pragma))
		}
	}
	return nil
}

func execSchema(db *sql.DB) error {
	const op = "cache.execSchema"

	tx, err := db.Begin()
	if err != nil {
		return errors.CacheIO(op, err, "failed to begin schema transaction")
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return errors.CacheIO(op, err, fmt.Sprintf("failed to execute schema statement: %s", stmt))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.CacheIO(op, err, "failed to commit schema transaction")
	}
	return nil
}

func (s *SQLiteStore) prepare(ctx context.Context) error {
	const op = "SQLiteStore.prepare"

	var err error
	if s.save, err = s.db.PrepareContext(ctx, saveRecordQuery); err != nil {
		return errors.CacheIO(op, err, "failed to prepare save statement")
	}
	if s.load, err = s.db.PrepareContext(ctx, loadRecordQuery); err != nil {
		return errors.CacheIO(op, err, "failed to prepare load statement")
	}
	if s.del, err = s.db.PrepareContext(ctx, deleteRecordQuery); err != nil {
		return errors.CacheIO(op, err, "failed to prepare delete statement")
	}
	if s.all, err = s.db.PrepareContext(ctx, allRecordsQuery); err != nil {
		return errors.CacheIO(op, err, "failed to prepare all statement")
	}
	return nil
}

// withRetry retries writes that lose the race on a locked database file.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for i := 0; i < s.retry.maxAttempts; i++ {
		select {
		case <-ctx.Done():
			return errors.CacheIO(op, ctx.Err(), "context cancelled")
		default:
		}

		if err := fn(); err != nil {
			lastErr = err
			if !strings.Contains(err.Error(), "database is locked") {
				return errors.CacheIO(op, err, "query failed")
			}
			time.Sleep(s.retry.delay)
			continue
		}
		return nil
	}
	return errors.CacheIO(op, lastErr, "max retries exceeded")
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	const op = "SQLiteStore.Save"

	chapters, err := json.Marshal(rec.Result.Chapters)
	if err != nil {
		return errors.CacheIO(op, err, "failed to encode chapters")
	}

	return s.withRetry(ctx, op, func() error {
		_, err := s.save.ExecContext(ctx,
			rec.VideoID,
			rec.Timestamp.UTC(),
			rec.Result.Transcription,
			string(chapters),
			rec.Result.Summary,
		)
		return err
	})
}

func (s *SQLiteStore) Load(ctx context.Context, videoID string) (Record, bool, error) {
	const op = "SQLiteStore.Load"

	rec, err := scanRecord(s.load.QueryRowContext(ctx, videoID))
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errors.CacheIO(op, err, "failed to load record")
	}
	return rec, true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, videoID string) error {
	const op = "SQLiteStore.Delete"

	return s.withRetry(ctx, op, func() error {
		_, err := s.del.ExecContext(ctx, videoID)
		return err
	})
}

func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	const op = "SQLiteStore.All"

	rows, err := s.all.QueryContext(ctx)
	if err != nil {
		return nil, errors.CacheIO(op, err, "failed to query records")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.CacheIO(op, err, "failed to scan record")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.CacheIO(op, err, "row iteration failed")
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.save, s.load, s.del, s.all} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec      Record
		chapters string
	)
	if err := row.Scan(
		&rec.VideoID,
		&rec.Timestamp,
		&rec.Result.Transcription,
		&chapters,
		&rec.Result.Summary,
	); err != nil {
		return Record{}, err
	}
	if chapters != "" {
		if err := json.Unmarshal([]byte(chapters), &rec.Result.Chapters); err != nil {
			return Record{}, err
		}
	}
	return rec, nil
}
