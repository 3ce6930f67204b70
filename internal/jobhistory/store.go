// Package jobhistory is a small SQLite-backed append-only log of terminal
// job outcomes: pressly/goose embedded migrations create the schema,
// modernc.org/sqlite is the (pure-Go, CGO-free) driver. Deliberately
// decoupled from the FUSM's own in-memory-only retry state — losing this
// log never affects upload correctness, only observability via the
// status/history CLI commands.
package jobhistory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// JobHistoryRecord is one row of the append-only job_history table.
type JobHistoryRecord struct {
	ID         string
	JobID      string
	Outcome    string
	RecordedAt time.Time
}

// Store is the sole writer of the job_history table. Opens with
// SetMaxOpenConns(1) since SQLite serializes writers regardless.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if necessary) the SQLite database at dbPath, runs
// pending migrations, and returns a ready-to-use Store.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobhistory: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()

		return nil, err
	}

	logger.Info("jobhistory: store initialized", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordJobOutcome appends a terminal outcome for jobID. Satisfies
// jobexecutor.HistoryRecorder.
func (s *Store) RecordJobOutcome(ctx context.Context, jobID, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_history (id, job_id, outcome, recorded_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), jobID, outcome, s.nowFunc().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("jobhistory: recording outcome for job %s: %w", jobID, err)
	}

	return nil
}

// Recent returns the most recent n job outcomes, newest first. Used by the
// status CLI command.
func (s *Store) Recent(ctx context.Context, n int) ([]JobHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, outcome, recorded_at FROM job_history
		 ORDER BY recorded_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("jobhistory: querying recent outcomes: %w", err)
	}
	defer rows.Close()

	var records []JobHistoryRecord

	for rows.Next() {
		var (
			r          JobHistoryRecord
			recordedAt int64
		)

		if err := rows.Scan(&r.ID, &r.JobID, &r.Outcome, &recordedAt); err != nil {
			return nil, fmt.Errorf("jobhistory: scanning row: %w", err)
		}

		r.RecordedAt = time.Unix(0, recordedAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobhistory: iterating rows: %w", err)
	}

	return records, nil
}

// CountByOutcome returns the number of recorded job_history rows matching
// outcome, for the status command's summary counts.
func (s *Store) CountByOutcome(ctx context.Context, outcome string) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_history WHERE outcome = ?`, outcome,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("jobhistory: counting outcome %s: %w", outcome, err)
	}

	return count, nil
}
