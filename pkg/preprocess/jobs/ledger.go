// Package jobs tracks CasJobs query submissions so re-runs resume instead
// of resubmitting work that already exists in MyDB.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/KyleAMoore/Redshift-ResNet/pkg/preprocess/contenthash"
)

var (
	// ErrNotFound indicates no submission matched.
	ErrNotFound = errors.New("submission not found")

	// ErrLedgerClosed indicates an operation on a closed ledger.
	ErrLedgerClosed = errors.New("submission ledger is closed")
)

// Submission is one recorded CasJobs query submission. Context is the
// CasJobs search context the query ran in, not a context.Context.
type Submission struct {
	JobID       int64
	Table       string
	QueryDigest string
	Context     string
	Status      int
	SubmittedAt time.Time
}

// Digest returns the content digest that keys a query text in the ledger.
func Digest(query string) string {
	return contenthash.Keys([]string{query})
}

// Ledger persists submissions to SQLite.
// It is suitable for single-process production use.
type Ledger struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open creates a submission ledger at path. Use ":memory:" for testing.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between pooled writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			table_name     TEXT NOT NULL,
			query_digest   TEXT NOT NULL,
			job_id         INTEGER NOT NULL,
			search_context TEXT NOT NULL,
			status         INTEGER NOT NULL,
			submitted_at   TEXT NOT NULL,
			PRIMARY KEY (table_name, query_digest)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_submissions_job_id
		ON submissions(job_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Record inserts a submission, replacing any earlier submission of the
// same query for the same table.
func (l *Ledger) Record(ctx context.Context, sub Submission) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLedgerClosed
	}

	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO submissions (table_name, query_digest, job_id, search_context, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(table_name, query_digest) DO UPDATE SET
			job_id = excluded.job_id,
			search_context = excluded.search_context,
			status = excluded.status,
			submitted_at = excluded.submitted_at
	`, sub.Table, sub.QueryDigest, sub.JobID, sub.Context, sub.Status,
		submittedAt.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// Find returns the most recent submission for a table.
func (l *Ledger) Find(ctx context.Context, table string) (Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return Submission{}, ErrLedgerClosed
	}

	row := l.db.QueryRowContext(ctx, `
		SELECT table_name, query_digest, job_id, search_context, status, submitted_at
		FROM submissions
		WHERE table_name = ?
		ORDER BY submitted_at DESC
		LIMIT 1
	`, table)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, fmt.Errorf("find submission: %w", err)
	}
	return sub, nil
}

// MarkStatus updates the status of the submission with the given job ID.
func (l *Ledger) MarkStatus(ctx context.Context, jobID int64, status int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLedgerClosed
	}

	result, err := l.db.ExecContext(ctx, `
		UPDATE submissions SET status = ? WHERE job_id = ?
	`, status, jobID)
	if err != nil {
		return fmt.Errorf("mark status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all submissions ordered by submission time.
func (l *Ledger) List(ctx context.Context) ([]Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrLedgerClosed
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT table_name, query_digest, job_id, search_context, status, submitted_at
		FROM submissions
		ORDER BY submitted_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}

// Close releases the database handle. Further calls return ErrLedgerClosed.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(s scanner) (Submission, error) {
	var sub Submission
	var submittedAt string
	if err := s.Scan(&sub.Table, &sub.QueryDigest, &sub.JobID, &sub.Context, &sub.Status, &submittedAt); err != nil {
		return Submission{}, err
	}
	sub.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
	return sub, nil
}
