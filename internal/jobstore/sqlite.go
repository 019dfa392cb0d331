package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/valid8/valid8/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL
// mode, and runs the migration.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context) (*model.Job, error) {
	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.New().String(),
		Status:    model.JobPending,
		Stage:     model.StageReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal job")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), string(payload), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return job, nil
}

func (s *SQLiteStore) Update(ctx context.Context, jobID string, fn Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx, `SELECT payload FROM jobs WHERE id = ?`, jobID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: load job %s", jobID)
	}

	var job model.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return eris.Wrapf(err, "sqlite: decode job %s", jobID)
	}

	fn(&job)
	job.UpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(&job)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, payload = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), string(updated), job.UpdatedAt, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", jobID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM jobs WHERE id = ?`, jobID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}

	var job model.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode job %s", jobID)
	}
	return &job, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		var job model.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode job")
		}
		jobs = append(jobs, job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}
